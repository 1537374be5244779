// Package di contains dependency injection tokens for the dashboard context.
package di

import (
	"github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/infra/api"
	"github.com/fd1az/savvy-farm/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("dashboard.Aggregator")
	Refresher  = di.NewToken[*app.Refresher]("dashboard.Refresher")
	Dispatcher = di.NewToken[*app.Dispatcher]("dashboard.Dispatcher")
)

// Private dependency tokens - internal to dashboard module
var (
	APIServer = di.NewToken[*api.Server]("dashboard:apiServer")
	Reporters = di.NewToken[[]app.Reporter]("dashboard:reporters")
)

func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetRefresher(c di.ServiceRegistry) *app.Refresher {
	return di.GetToken(c, Refresher)
}

func GetDispatcher(c di.ServiceRegistry) *app.Dispatcher {
	return di.GetToken(c, Dispatcher)
}

func GetAPIServer(c di.ServiceRegistry) *api.Server {
	return di.GetToken(c, APIServer)
}

func GetReporters(c di.ServiceRegistry) []app.Reporter {
	return di.GetToken(c, Reporters)
}
