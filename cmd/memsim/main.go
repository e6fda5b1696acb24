/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// memsim serves the hybrid best-fit/buddy memory allocation simulator over
// HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/cloudwego/memsim/api"
	"github.com/cloudwego/memsim/arena"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := &cli.App{
		Name:  "memsim",
		Usage: "memory allocation simulator: best-fit with optional buddy rounding and on-demand compaction",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8000",
				Usage: "listen address",
			},
			&cli.IntFlag{
				Name:  "capacity",
				Usage: "pre-initialize the arena with this capacity instead of waiting for /initialize",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "logrus level (trace, debug, info, warn, error)",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	lvl, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	log := logrus.WithField("component", "memsim")

	var a *arena.Arena
	if capacity := c.Int("capacity"); capacity > 0 {
		if a, err = arena.New(capacity); err != nil {
			return err
		}
		log.WithField("capacity", capacity).Info("arena pre-initialized")
	}

	srv := &http.Server{
		Addr:    c.String("addr"),
		Handler: api.NewServer(a, log).Handler(),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	gopool.Go(func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.WithError(err).Warn("shutdown did not complete cleanly")
		}
	})

	log.WithField("addr", srv.Addr).Info("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
