package config

import "time"

// ApplyDefaults fills zero-valued fields with sensible defaults so that a
// minimal configuration file (host, credentials) is enough to run.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 20 * time.Second
	}

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "psicorisco"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.DefaultTTL == 0 {
		c.Redis.DefaultTTL = 15 * time.Minute
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "psicorisco"
	}

	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "psicorisco"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "psicorisco-automation"
	}
	if c.Kafka.IntakeTopic == "" {
		c.Kafka.IntakeTopic = "assessment.completed"
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 100 * time.Millisecond
	}
	if c.Kafka.WriteTimeout == 0 {
		c.Kafka.WriteTimeout = 10 * time.Second
	}
	if c.Kafka.MaxAttempts == 0 {
		c.Kafka.MaxAttempts = 3
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 3
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 3
	}
	if c.Worker.RetryBackoff == 0 {
		c.Worker.RetryBackoff = 30 * time.Second
	}
	if c.Worker.JobTimeout == 0 {
		c.Worker.JobTimeout = 2 * time.Minute
	}
	if c.Worker.LeaseTTL == 0 {
		c.Worker.LeaseTTL = 5 * time.Minute
	}
	if c.Worker.EscalationCheckInterval == 0 {
		c.Worker.EscalationCheckInterval = 30 * time.Second
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/categories.yaml"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.Log.OutputPaths) == 0 {
		c.Log.OutputPaths = []string{"stdout"}
	}
	if len(c.Log.ErrorOutputPaths) == 0 {
		c.Log.ErrorOutputPaths = []string{"stderr"}
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "psicorisco"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
}
