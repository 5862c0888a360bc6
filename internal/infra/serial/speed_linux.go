//go:build linux

package serial

import "golang.org/x/sys/unix"

// setSpeed sets the baud rate; TCSETS reads it from the CBAUD bits.
func setSpeed(termios *unix.Termios, speed uint32) {
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= speed
	termios.Ispeed = speed
	termios.Ospeed = speed
}
