package main

import (
	"errors"
	"log/slog"

	"bftledger/internal/command"
	"bftledger/internal/configuration"
	"bftledger/internal/logging"
	"bftledger/internal/metrics"
	"bftledger/internal/node"
)

type Services struct {
	Config  *configuration.AppConfigProvider
	Cluster *node.Cluster
	Command *command.Service
	Metrics *metrics.Server
}

// NewServices loads configuration from dir, installs the logger and builds
// the cluster together with the command service that drives it.
func NewServices(dir string) (*Services, error) {
	props, err := configuration.Load(dir)
	if err != nil {
		return nil, err
	}

	provider := configuration.NewProvider(props)
	logging.Init(provider.GetApplication().LogLevel)
	slog.Info("configuration loaded", "dir", dir, "profile", provider.GetApplication().Profile)

	cluster, err := node.NewCluster(node.NewConfigFromProperties(props))
	if err != nil {
		return nil, err
	}

	svc := &Services{
		Config:  provider,
		Cluster: cluster,
		Command: command.NewService(cluster),
	}

	if m := provider.GetMetrics(); m.Enabled {
		svc.Metrics = metrics.NewServer(m.Address, func() error {
			_, err := cluster.Ledger().StateHash()
			return err
		})
		if err := svc.Metrics.Start(); err != nil {
			return nil, errors.Join(err, cluster.Close())
		}
	}

	return svc, nil
}

func (s *Services) Close() error {
	if s.Metrics != nil {
		s.Metrics.Stop()
	}
	return s.Cluster.Close()
}
