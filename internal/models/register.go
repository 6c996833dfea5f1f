package models

import "encoding/gob"

// Badger storage encodes records with gob. Task parameters, task results
// and raw audit payloads are free-form JSON trees, so the container types
// appearing inside interface values must be registered.
func init() {
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}
