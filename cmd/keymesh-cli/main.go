// Package main provides the keymesh command-line client.
//
// It speaks the server's wire protocol through pkg/client, one command
// per invocation:
//
//	keymesh-cli -s 127.0.0.1:31337 set name Alice
//	keymesh-cli get name
//	keymesh-cli keys 'a*'
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/keymesh-go/internal/infra/buildinfo"
	"github.com/yndnr/keymesh-go/pkg/client"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func app() *cli.App {
	return &cli.App{
		Name:    "keymesh-cli",
		Usage:   "keymesh command-line client",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "server address",
				EnvVars: []string{"KEYMESH_SERVER"},
				Value:   "127.0.0.1:31337",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "connect timeout",
				Value: 5 * time.Second,
			},
		},
		Commands: []*cli.Command{
			getCommand(),
			setCommand(),
			delCommand(),
			existsCommand(),
			expireCommand(),
			ttlCommand(),
			mgetCommand(),
			msetCommand(),
			keysCommand(),
			flushCommand(),
			pingCommand(),
			shutdownCommand(),
		},
	}
}

// connect dials the server from the global flags.
func connect(c *cli.Context) (*client.Client, error) {
	return client.DialTimeout(c.String("server"), c.Duration("timeout"))
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the value of a key",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("get requires exactly one key")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			v, ok, err := kc.Get(c.Args().First())
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit("(nil)", 1)
			}
			fmt.Println(string(v))
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a key to a value",
		ArgsUsage: "<key> <value>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "time to live (e.g. 30s, 5m); 0 means no expiry",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("set requires a key and a value")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			key, value := c.Args().Get(0), []byte(c.Args().Get(1))
			if ttl := c.Duration("ttl"); ttl > 0 {
				err = kc.SetTTL(key, value, ttl)
			} else {
				err = kc.Set(key, value)
			}
			if err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func delCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Aliases:   []string{"delete"},
		Usage:     "Delete one or more keys",
		ArgsUsage: "<key> [key ...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return errors.New("del requires at least one key")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			n, err := kc.Delete(c.Args().Slice()...)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
}

func existsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "Count how many of the given keys exist",
		ArgsUsage: "<key> [key ...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return errors.New("exists requires at least one key")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			n, err := kc.Exists(c.Args().Slice()...)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
}

func expireCommand() *cli.Command {
	return &cli.Command{
		Name:      "expire",
		Usage:     "Set a key's time to live in seconds",
		ArgsUsage: "<key> <seconds>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("expire requires a key and seconds")
			}
			var seconds int64
			if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &seconds); err != nil {
				return errors.New("seconds must be an integer")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			ok, err := kc.Expire(c.Args().Get(0), seconds)
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit("0", 1)
			}
			fmt.Println("1")
			return nil
		},
	}
}

func ttlCommand() *cli.Command {
	return &cli.Command{
		Name:      "ttl",
		Usage:     "Get a key's remaining time to live in seconds",
		ArgsUsage: "<key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("ttl requires exactly one key")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			ttl, err := kc.TTL(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Println(ttl)
			return nil
		},
	}
}

func mgetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mget",
		Usage:     "Get the values of multiple keys",
		ArgsUsage: "<key> [key ...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return errors.New("mget requires at least one key")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			vals, err := kc.MGet(c.Args().Slice()...)
			if err != nil {
				return err
			}
			for i, v := range vals {
				if v == nil {
					fmt.Printf("%d) (nil)\n", i+1)
				} else {
					fmt.Printf("%d) %s\n", i+1, v)
				}
			}
			return nil
		},
	}
}

func msetCommand() *cli.Command {
	return &cli.Command{
		Name:      "mset",
		Usage:     "Set multiple key/value pairs atomically",
		ArgsUsage: "<key> <value> [key value ...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 || c.NArg()%2 != 0 {
				return errors.New("mset requires key/value pairs")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			if err := kc.MSet(c.Args().Slice()...); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:      "keys",
		Usage:     "List keys matching a glob pattern",
		ArgsUsage: "<pattern>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("keys requires exactly one pattern")
			}
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			keys, err := kc.Keys(c.Args().First())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func flushCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "Remove all keys",
		Action: func(c *cli.Context) error {
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			if err := kc.Flush(); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:      "ping",
		Usage:     "Check the server connection",
		ArgsUsage: "[message]",
		Action: func(c *cli.Context) error {
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			reply, err := kc.Ping(c.Args().Slice()...)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
}

func shutdownCommand() *cli.Command {
	return &cli.Command{
		Name:  "shutdown",
		Usage: "Stop the server",
		Action: func(c *cli.Context) error {
			kc, err := connect(c)
			if err != nil {
				return err
			}
			defer kc.Close()

			if err := kc.Shutdown(); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}
