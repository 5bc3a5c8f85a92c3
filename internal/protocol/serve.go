package protocol

import (
	"context"
	"net"
	"sync"

	"github.com/yanun0323/logs"
)

// Listener is the accept side of a transport.
type Listener interface {
	Accept() (net.Conn, error)
	Close() error
}

// Serve accepts connections and runs handle on its own goroutine for each.
// When ctx is done the listener and every open connection are closed and
// Serve returns after all handlers finish.
func Serve(ctx context.Context, ln Listener, handle func(net.Conn)) error {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
	)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		mu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		mu.Lock()
		if ctx.Err() != nil {
			mu.Unlock()
			_ = conn.Close()
			continue
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				_ = conn.Close()
			}()
			defer func() {
				if r := recover(); r != nil {
					logs.Errorf("connection handler panic, remote: %s, err: %+v", conn.RemoteAddr(), r)
				}
			}()
			handle(conn)
		}()
	}
}
