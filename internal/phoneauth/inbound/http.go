package inbound

import (
	"context"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/usecase"
	"github.com/shandysiswandi/finadvise/internal/pkg/router"
)

type uc interface {
	SendOTP(ctx context.Context, in usecase.SendOTPInput) (*usecase.SendOTPOutput, error)
	VerifyOTP(ctx context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error)

	ExchangeSession(ctx context.Context, in usecase.ExchangeSessionInput) (*usecase.ExchangeSessionOutput, error)
	SessionInfo(ctx context.Context) (*usecase.SessionIdentity, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// One-time codes
	r.POST("/otp/send", end.SendLogin)
	r.POST("/otp/send-named", end.SendNamed)
	r.POST("/otp/verify", end.VerifyLogin)
	r.POST("/otp/verify-named", end.VerifyNamed)

	// Session
	r.POST("/otp/session", end.ExchangeSession)
	r.GET("/otp/session", end.SessionInfo) // need authenticated
}
