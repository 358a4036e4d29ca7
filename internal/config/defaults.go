package config

func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:            "WhatsApp Bot Template",
			Environment:     "development",
			LogLevel:        "info",
			DefaultTenantID: "demo_client",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Tenants: TenantsConfig{
			Dir: "configs/clients",
		},
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   "data/bot.db",
			MaxTurns: 5,
		},
		Events: EventsConfig{
			Enabled:  false,
			Exchange: "bot.events",
		},
		Admin: AdminConfig{},
	}
}
