package redis

import (
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/config"
)

func configFor(url, addr string) config.RedisConfig {
	return config.RedisConfig{
		URL:          url,
		Address:      addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
	}
}
