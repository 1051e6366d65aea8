// Package config provides configuration parsing for routedata.
//
// The configuration lives in routedata.json (or routedata.toml) at the
// project root. Every field is optional.
//
// # Configuration File Structure
//
//	{
//	  "routes": "routes.json",
//	  "backend": {"url": "http://localhost:8080", "timeout": "10s"},
//	  "server": {"host": "localhost", "port": 3000},
//	  "navigation": {"maxRedirects": 20, "loaderTimeout": "5s"},
//	  "metrics": {"enabled": true, "path": "/metrics", "namespace": "routedata"},
//	  "tracing": {"enabled": false, "tracerName": "routedata"},
//	  "store": {"kind": "file", "path": "events.json"},
//	  "log": {"level": "info"}
//	}
//
// The same document in TOML:
//
//	routes = "routes.toml"
//
//	[backend]
//	url = "http://localhost:8080"
//
//	[store]
//	kind = "s3"
//	bucket = "events"
//	endpoint = "http://localhost:9000"
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Address())
package config
