package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ConfigHash returns a stable content hash of an effective configuration.
// encoding/json sorts map keys and serializes struct fields in declaration
// order, so two equal configurations always hash equal regardless of
// process or platform. Used to detect config drift across checkpointed
// years (§4.8) and to populate Checkpoint.ConfigHash.
func ConfigHash(cfg interface{}) (string, error) {
	canonical, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("domain: marshal config for hashing: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// NewEventID derives the deterministic content-addressed id for an event:
// hash(scenario_id|plan_design_id|employee_id|year|event_type). Unlike
// rng.Draw (a uniform draw over a key), this is an identity hash — two
// events with the same five components are the same event.
func NewEventID(scenarioID, planDesignID, employeeID string, year int, eventType EventType) string {
	key := fmt.Sprintf("%s|%s|%s|%d|%s", scenarioID, planDesignID, employeeID, year, eventType)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
