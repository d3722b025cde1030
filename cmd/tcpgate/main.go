// tcpgate multiplexes local client connections onto one router connection.
//
// Each client speaks newline-delimited JSON. Messages from a client have
// their from.channel rewritten to <prefix>:<index>:<channel> before being
// forwarded to the router; router messages addressed to
// <prefix>:<index>:<channel> are delivered to client <index> with the first
// two parts stripped. Losing the router connection terminates the process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/tiechui1994/tcpgate/cmd/tcpgate/gateway"
	"github.com/tiechui1994/tcpgate/cmd/tcpgate/wsbridge"
	"github.com/tiechui1994/tcpgate/log"
)

func die(f string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func main() {
	cliArgs, err := ParseCommandLineArguments(os.Args[1:], os.Stderr)
	if err != nil {
		die("%v", err)
	}
	if cliArgs.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	events := make(chan gateway.Event, 128)
	gw, err := gateway.Dial(context.Background(), cliArgs.RouterAddress, cliArgs.ListenAddress, gateway.Config{
		Prefix:       cliArgs.Prefix,
		WriteTimeout: cliArgs.WriteTimeout,
		Events:       events,
	})
	if err != nil {
		log.Fatalln("serve exited: %v", err)
	}
	log.Infoln("[Gateway] connected to router %v as %q, listening on %v", cliArgs.RouterAddress, gw.Prefix(), gw.Addr())
	go logEvents(events)

	if cliArgs.WebSocketAddress != "" {
		bridge := wsbridge.New(gw.Addr().String())
		go func() {
			log.Infoln("[WS] listening on %v", cliArgs.WebSocketAddress)
			if err := http.ListenAndServe(cliArgs.WebSocketAddress, bridge); err != nil {
				log.Fatalln("[WS] serve exited: %v", err)
			}
		}()
	}

	err = gw.Serve()
	log.Fatalln("serve exited: %v", err)
}

func logEvents(events <-chan gateway.Event) {
	for ev := range events {
		if ev.Err != nil {
			log.Debugln("[Event] %v index=%d addr=%v err=%v", ev.Type, ev.Index, ev.Addr, ev.Err)
			continue
		}
		log.Debugln("[Event] %v index=%d addr=%v", ev.Type, ev.Index, ev.Addr)
	}
}
