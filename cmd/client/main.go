package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"

	"github.com/lk2023060901/roomchat/internal/chat"
)

const usage = "usage: client [--name <user>] <host> <port>"

func main() {
	flags := pflag.NewFlagSet("client", pflag.ContinueOnError)
	name := flags.String("name", "guest", "name prefixed to every message")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if flags.NArg() != 2 {
		flags.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, net.JoinHostPort(flags.Arg(0), flags.Arg(1)), *name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, name string) error {
	cli, err := chat.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer cli.Close()

	fmt.Printf("Server has %d rooms, joining room 1. Type /N to switch, exit to leave.\n", cli.Rooms())
	if err := cli.Join(1); err != nil {
		return err
	}

	go forwardInput(cli, os.Stdin, name)
	context.AfterFunc(ctx, func() { _ = cli.Close() })

	for {
		line, err := cli.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Println(line)
	}
}

// forwardInput 把标准输入逐行发给服务端，输入结束时发送 exit。
func forwardInput(cli *chat.Client, in io.Reader, name string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		directive, err := chat.ParseDirective(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		switch directive.Kind {
		case chat.DirectiveExit:
			_ = cli.Exit()
			return
		case chat.DirectiveSwitchRoom:
			err = cli.Join(directive.Room)
		default:
			err = cli.Say(name + ": " + line)
		}
		if err != nil {
			return
		}
	}
	_ = cli.Exit()
}
