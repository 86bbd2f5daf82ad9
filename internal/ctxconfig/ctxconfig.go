package ctxconfig

import (
	"context"

	"fknsrs.biz/p/ytfeed/internal/config"
)

// context registration

var configKey int

func WithConfig(ctx context.Context, c config.Config) context.Context {
	return context.WithValue(ctx, &configKey, c)
}

func GetConfig(ctx context.Context) config.Config {
	if v := ctx.Value(&configKey); v != nil {
		return v.(config.Config)
	}

	return config.Config{}
}

// main interface

func FeedFile(ctx context.Context, name string) string {
	return GetConfig(ctx).FeedFile(name)
}
