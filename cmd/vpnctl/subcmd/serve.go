/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/httpapi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func init() {
	RootCmd.AddCommand(NewServeCommand())
}

func NewServeCommand() *cobra.Command {
	serveCmd := &ServeCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operations over HTTP",
		Long: `Serve every operation at /<name> (status, start, stop, monitor, register)
with API Gateway compatible responses. Basic authentication is enforced when an
admin user and bcrypt password hash are configured.`,
		Args: cobra.NoArgs,
		RunE: serveCmd.run,
	}

	cmd.Flags().StringVar(&serveCmd.ListenAddr, "listen", "", "listen address (overrides configuration)")

	return cmd
}

type ServeCommand struct {
	ListenAddr string
}

func (s *ServeCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if s.ListenAddr != "" {
		cfg.Serve.ListenAddr = s.ListenAddr
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	api := httpapi.New(a.registry, cfg.Serve)
	if cfg.Serve.AdminUser == "" || cfg.Serve.AdminPasswordHash == "" {
		logrus.Warn("basic authentication disabled; set VPNCTL_ADMIN_USER and VPNCTL_ADMIN_PASSWORD_HASH")
	}

	srv := &http.Server{
		Addr:              cfg.Serve.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Infof("listening on '%s' for instance '%s'", srv.Addr, cfg.InstanceId)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
