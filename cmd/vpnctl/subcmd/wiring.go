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
	"strings"

	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/chunga-ict/vpnctl/kernel/cloud"
	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/handler"
	"github.com/chunga-ict/vpnctl/kernel/peer"
	"github.com/chunga-ict/vpnctl/kernel/remote"
	"github.com/chunga-ict/vpnctl/kernel/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	executorSSM = "ssm"
	executorSSH = "ssh"
)

// app holds everything a front end needs to dispatch operations.
type app struct {
	cfg      *config.Config
	registry *handler.Registry
	recorder store.Recorder
	history  store.History
}

func newApp(cfg *config.Config) (*app, error) {
	sess, err := cloud.NewSession(cfg.Region)
	if err != nil {
		return nil, err
	}

	recorder, history := newRecorder(cfg)
	deps := handler.Deps{
		Config:   cfg,
		Compute:  cloud.NewEC2Compute(sess),
		Metrics:  cloud.NewCloudWatchMetrics(sess),
		Notifier: cloud.NewSNSNotifier(sess),
		Recorder: recorder,
	}

	registrar, err := newRegistrar(cfg, sess)
	if err != nil {
		logrus.WithError(err).Warn("peer registration disabled")
	} else {
		deps.Registrar = registrar
	}

	return &app{
		cfg:      cfg,
		registry: handler.NewDefaultRegistry(deps),
		recorder: recorder,
		history:  history,
	}, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		logrus.WithError(err).Warn("unable to close traffic recorder")
	}
}

// newRecorder prefers InfluxDB, then a local history file. history is nil when the
// recorder cannot be listed.
func newRecorder(cfg *config.Config) (store.Recorder, store.History) {
	if cfg.Influx.Enabled() {
		logrus.Infof("recording traffic evaluations to influxdb at '%s'", cfg.Influx.Url)
		return store.NewInfluxStore(cfg.Influx), nil
	}
	if cfg.HistoryPath != "" {
		fs := store.NewFileStore(cfg.HistoryPath)
		return fs, fs
	}
	return store.Discard{}, nil
}

func newRegistrar(cfg *config.Config, p client.ConfigProvider) (*peer.Registrar, error) {
	if err := cfg.Registrar.Validate(); err != nil {
		return nil, err
	}
	exec, err := newExecutor(cfg, p)
	if err != nil {
		return nil, err
	}
	return peer.NewRegistrar(exec, cfg.Registrar)
}

func newExecutor(cfg *config.Config, p client.ConfigProvider) (remote.Executor, error) {
	switch strings.ToLower(cfg.Registrar.Executor) {
	case "", executorSSM:
		return remote.NewSSMExecutor(p, cfg.InstanceId, cfg.Registrar.PollInterval()), nil
	case executorSSH:
		return remote.LoadSSHExecutor(cfg.Registrar.SSH)
	default:
		return nil, errors.Errorf("unknown remote executor '%s'", cfg.Registrar.Executor)
	}
}
