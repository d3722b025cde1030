package main

import (
	"flag"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/tiechui1994/tcpgate/cmd/tcpgate/gateway"
)

type CommandLineArguments struct {
	RouterAddress    string
	ListenAddress    string
	Prefix           string
	WebSocketAddress string
	WriteTimeout     time.Duration
	Verbose          bool
}

func ParseCommandLineArguments(args []string, output io.Writer) (*CommandLineArguments, error) {
	cliArgs := CommandLineArguments{}

	fs := flag.NewFlagSet("tcpgate", flag.ContinueOnError)
	fs.SetOutput(output)
	for _, name := range []string{"r", "router-socket"} {
		fs.StringVar(&cliArgs.RouterAddress, name, "", "router address HOST:PORT (required)")
	}
	for _, name := range []string{"s", "socket"} {
		fs.StringVar(&cliArgs.ListenAddress, name, "", "socket to listen to HOST:PORT (required)")
	}
	for _, name := range []string{"p", "prefix"} {
		fs.StringVar(&cliArgs.Prefix, name, gateway.DefaultPrefix, "router prefix")
	}
	for _, name := range []string{"w", "ws"} {
		fs.StringVar(&cliArgs.WebSocketAddress, name, "", "websocket ingress address HOST:PORT")
	}
	fs.DurationVar(&cliArgs.WriteTimeout, "write-timeout", gateway.DefaultWriteTimeout, "write deadline for messages to the router")
	fs.BoolVar(&cliArgs.Verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := cliArgs.Validate(); err != nil {
		return nil, err
	}
	return &cliArgs, nil
}

func (args *CommandLineArguments) Validate() error {
	if args.RouterAddress == "" {
		return errors.New("missing required option -r/-router-socket")
	}
	if args.ListenAddress == "" {
		return errors.New("missing required option -s/-socket")
	}
	if addressIsInvalid(args.RouterAddress) {
		return errors.Errorf("wrong format for router address (%s). expect <host>:<port>", args.RouterAddress)
	}
	if addressIsInvalid(args.ListenAddress) {
		return errors.Errorf("wrong format for socket address (%s). expect <host>:<port>", args.ListenAddress)
	}
	if args.WebSocketAddress != "" && addressIsInvalid(args.WebSocketAddress) {
		return errors.Errorf("wrong format for websocket address (%s). expect <host>:<port>", args.WebSocketAddress)
	}
	if args.Prefix == "" {
		return errors.New("prefix must not be empty")
	}
	return nil
}

func addressIsInvalid(addr string) bool {
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return true
	}
	return false
}
