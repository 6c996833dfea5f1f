// Package common provides shared utilities and default configuration.
package common

// DefaultKVValue represents a default key/value pair that is seeded on startup.
type DefaultKVValue struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// GetDefaultKVValues returns the variables seeded into the key/value store on
// startup when absent. Config files may reference them with {key-name}
// placeholders; users can edit them via the variables API.
func GetDefaultKVValues() []DefaultKVValue {
	return []DefaultKVValue{
		{
			Key:         "semrush_api_url",
			Value:       "https://api.semrush.com",
			Description: "SEMrush API base URL",
		},
		{
			Key:         "insights_backfill_days",
			Value:       "7",
			Description: "How many days back the scheduled insights job looks for analyses without generated text",
		},
	}
}
