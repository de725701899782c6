/*
Package config loads objclient configuration from YAML files and environment
variables.

# Sources

Later sources override earlier ones:

	┌─────────────────────────────────────────────┐
	│        Command line flags (cmd/objcli)      │ ← Highest Priority
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│   Environment Variables (OBJCLIENT_*, AWS_*) │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Configuration File (YAML)            │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# File Format

	global:
	  log_level: INFO
	  log_file: /var/log/objclient.log
	client:
	  region: eu-west-1
	  endpoint: s3.amazonaws.com
	  force_path_style: false
	  signer: ""            # "v2" or "v4" to force a scheme
	  region_prober: header # header, aws or none
	  region_cache_size: 300
	  completion_retry:
	    max_error_retry: 3
	    initial_delay: 100ms
	    source: builtin     # or aws: SDK standard retryer backoff
	logging:
	  format: text
	  max_size_mb: 100
	metrics:
	  enabled: true
	  address: ":9090"

Unknown keys are rejected. SaveToFile never writes credentials; they come
from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
*/
package config
