// audit.go: Audit trail of reload and swap events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"os"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/go-timecache"
)

// auditTrail records bundle reloads and instance swaps through an argus
// audit logger. A nil *auditTrail, or one built from a disabled config,
// records nothing.
type auditTrail struct {
	logger    *argus.AuditLogger
	component string
}

// newAuditTrail opens the audit output when cfg is enabled.
func newAuditTrail(cfg argus.AuditConfig, component string) (*auditTrail, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	logger, err := argus.NewAuditLogger(cfg)
	if err != nil {
		return nil, NewAuditError("failed to create audit logger", err)
	}
	return &auditTrail{logger: logger, component: component}, nil
}

// event records eventType with the standard component, timestamp and pid
// fields added to context.
func (a *auditTrail) event(eventType string, context map[string]interface{}) {
	if a == nil || a.logger == nil {
		return
	}
	if context == nil {
		context = make(map[string]interface{})
	}
	context["component"] = a.component
	context["timestamp"] = timecache.CachedTime().Format(time.RFC3339)
	context["pid"] = os.Getpid()

	a.logger.LogSecurityEvent(eventType, "Plugin hot reload", context)
}

// close flushes and closes the audit output.
func (a *auditTrail) close() error {
	if a == nil || a.logger == nil {
		return nil
	}
	return a.logger.Close()
}
