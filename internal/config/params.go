package config

// Param describes one delivery tunable: its configuration name, its default
// as written in a config file, and what it controls. The table is the
// single reference for operators ("corvus config defaults") and for the
// validation messages; DefaultConfig must stay in sync with it.
type Param struct {
	Name        string
	Default     string
	Description string
}

var params = []Param{
	{
		Name:        "client.request_deadline",
		Default:     "5m",
		Description: "combined time budget for sending one command and receiving its response",
	},
	{
		Name:        "client.deadline_ceiling",
		Default:     "10m",
		Description: "absolute cap on the request budget regardless of floor-rate extensions",
	},
	{
		Name:        "client.min_data_rate",
		Default:     "500",
		Description: "minimum acceptable data rate in bytes/second; 0 disables deadline extensions",
	},
	{
		Name:        "client.connect_timeout",
		Default:     "30s",
		Description: "time limit for establishing a connection to a candidate host",
	},
	{
		Name:        "client.max_concurrent_deliveries",
		Default:     "20",
		Description: "upper bound on messages delivered concurrently",
	},
	{
		Name:        "driver.breaker_threshold",
		Default:     "5",
		Description: "consecutive host failures before the host's circuit breaker opens; 0 disables",
	},
	{
		Name:        "driver.breaker_cooldown",
		Default:     "60s",
		Description: "how long an open breaker suppresses attempts before probing the host again",
	},
	{
		Name:        "journal.path",
		Default:     "/var/lib/corvus/journal.db",
		Description: "SQLite database holding per-recipient outcome records",
	},
}

// Params returns the delivery tunable table.
func Params() []Param {
	out := make([]Param, len(params))
	copy(out, params)
	return out
}

// LookupParam returns the table entry for name.
func LookupParam(name string) (Param, bool) {
	for _, p := range params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
