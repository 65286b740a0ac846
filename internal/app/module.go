package app

import (
	"log/slog"

	"github.com/shandysiswandi/finadvise/internal/crm"
	"github.com/shandysiswandi/finadvise/internal/phoneauth"
)

// initModules starts the CRM consumer before the OTP endpoints so the first
// verified lead already has a subscriber.
func (a *App) initModules() {
	modules := []struct {
		name string
		init func() error
	}{
		{
			name: "crm",
			init: func() error {
				return crm.New(crm.Dependency{
					Ctx:        a.ctx,
					DBConn:     a.dbConn,
					CacheConn:  a.cacheConn,
					Messaging:  a.messaging,
					Config:     a.config,
					Instrument: a.ins,
					UID:        a.uid,
					UUID:       a.uuid,
					Clock:      a.clock,
					Goroutine:  a.goroutine,
					Validator:  a.validator,
				})
			},
		},
		{
			name: "phoneauth",
			init: func() error {
				return phoneauth.New(phoneauth.Dependency{
					DBConn:     a.dbConn,
					CacheConn:  a.cacheConn,
					Router:     a.router,
					Messaging:  a.messaging,
					Config:     a.config,
					Instrument: a.ins,
					UID:        a.uid,
					Token:      a.token,
					HMAC:       a.hmac,
					AliasHash:  a.aliasHash,
					Clock:      a.clock,
					Validator:  a.validator,
					JWT:        a.jwt,
				})
			},
		},
	}

	for _, m := range modules {
		if !a.config.GetBool("modules." + m.name + ".enabled") {
			slog.Warn("module disabled", "module", m.name)
			continue
		}
		if err := m.init(); err != nil {
			fatal("failed to init module", err, "module", m.name)
		}
	}
}
