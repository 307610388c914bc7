//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"go-shortlink/internal/conf"
	"go-shortlink/internal/data"
	"go-shortlink/internal/server"

	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
	"go.uber.org/zap"
)

// wireServer init the edge application.
func wireServer(*conf.Bootstrap, *zap.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Server", "Data", "Redirect", "RateLimit", "Webhook", "Integrations", "Geo", "Worker", "Orgs"),
		wire.FieldsOf(new(*data.Data), "DB", "Redis"),
		data.ProviderSet,
		server.ProviderSet,
		repositorySet,
		notifySet,
		clickSet,
		edgeSet,
		newWorker,
		newServeApp,
	))
}

// wireWorker init the click worker application.
func wireWorker(*conf.Bootstrap, *zap.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Data", "Webhook", "Integrations", "Geo", "Worker"),
		wire.FieldsOf(new(*data.Data), "DB"),
		data.ProviderSet,
		repositorySet,
		notifySet,
		clickSet,
		newWorker,
		newWorkerApp,
	))
}
