// Package config handles configuration loading for hiredesk-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Required backend credentials are validated at load time so a misconfigured
// gateway fails at startup instead of on the first conversation turn.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	vso:
//	  pat: "${HIREDESK_VSO_PAT}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server and bot channel settings:
//
//	server:
//	  http_addr: "0.0.0.0:3978"
//	bot:
//	  app_id: "${HIREDESK_APP_ID}"
//	  app_password: "${HIREDESK_APP_PASSWORD}"
//	  phone_number: "+14255550100"
//	  agent_team_id: "19:agents@thread.skype"
//
// Work-item tracking:
//
//	vso:
//	  org_url: "https://dev.azure.com/contoso"
//	  project: "Concierge"
//	  username: "bot@contoso.com"
//	  pat: "${HIREDESK_VSO_PAT}"
//	  assign_to: "agents@contoso.com"
//
// Dialog tuning:
//
//	dialogs:
//	  min_description_length: 15
//	  prompt_attempts: 3
//	  online_threshold: "10m"
//
// Marketplace adapters (upwork, fancyhands), mail (sendgrid) and Microsoft
// Graph (graph) are optional; each is enabled with an `enabled: true` flag and
// validates its own credentials when enabled.
package config
