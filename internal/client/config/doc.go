// Package config loads runtime configuration for the health client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-u string   backend base URL
//	-k string   anon API key
//	-d string   local database path
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "400ms" or
// integer nanoseconds. Absent keys keep their current value:
//
//	{
//	  "backend_url": "https://project.supabase.co",
//	  "anon_key": "eyJ...",
//	  "auth_grace_period": "400ms",
//	  "refresh_step_timeout": "8s",
//	  "realtime_tables": ["health_events", "appointments"],
//	  "export_bucket": "doctor-reports"
//	}
package config
