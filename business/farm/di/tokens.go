// Package di contains dependency injection tokens for the farm context.
package di

import (
	"github.com/fd1az/savvy-farm/business/farm/app"
	"github.com/fd1az/savvy-farm/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway = di.NewToken[app.Gateway]("farm.Gateway")
)

func GetGateway(c di.ServiceRegistry) app.Gateway {
	return di.GetToken(c, Gateway)
}
