package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"pymata-gateway/pkg/client"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"
)

func main() {
	url := pflag.String("url", "ws://localhost:9000/", "gateway WebSocket URL")
	script := pflag.String("script", "", "YAML file of steps to run instead of the prompt")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := client.Dial(ctx, *url)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()

	if *script != "" {
		err = runScript(ctx, c, *script, os.Stdout)
	} else {
		err = runPrompt(ctx, c)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// printMessages writes every incoming message until the connection ends.
func printMessages(ctx context.Context, c *client.Client, out io.Writer) {
	for {
		msg, err := c.Next(ctx)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "<- %s %s\n", msg.Method, msg.Params)
	}
}

func runScript(ctx context.Context, c *client.Client, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s, err := loadScript(f)
	if err != nil {
		return err
	}

	go printMessages(ctx, c, out)
	for _, st := range s.Steps {
		fmt.Fprintf(out, "-> %s %v\n", st.Method, st.Params)
		if err := c.Send(st.Method, st.Params...); err != nil {
			return fmt.Errorf("%s: %w", st.Method, err)
		}
		if st.Wait > 0 {
			select {
			case <-time.After(st.Wait):
			case <-ctx.Done():
				return nil
			}
		}
	}
	// Let trailing replies arrive.
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}
	return nil
}

func runPrompt(ctx context.Context, c *client.Client) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pymata> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	go printMessages(ctx, c, rl.Stdout())
	fmt.Fprintln(rl.Stdout(), "Type a method and its params, e.g. digital_write 13 1. 'quit' exits.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "quit" || line == "exit" {
			return nil
		}
		method, params, err := parseLine(line)
		if err != nil {
			fmt.Fprintln(rl.Stderr(), err)
			continue
		}
		if method == "" {
			continue
		}
		if err := c.Send(method, params...); err != nil {
			return err
		}
	}
}
