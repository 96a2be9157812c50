package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/auth"
	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/utils"
)

// handleListDevices handles GET /api/device/list. activeUserId lets a user
// view an account connected to theirs.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	target := user.ID

	if active := r.URL.Query().Get("activeUserId"); active != "" && active != user.ID {
		connected, err := s.db.IsConnected(r.Context(), user.ID, active)
		if err != nil {
			s.logger.Error("failed to check connected account", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "Failed to fetch devices")
			return
		}
		if !connected {
			s.writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		target = active
	}

	devices, err := s.db.ListDevices(r.Context(), target)
	if err != nil {
		s.logger.Error("failed to list devices", zap.String("user_id", target), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch devices")
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success": true,
		"devices": devices,
	})
}

type deviceOwner struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	Balance          int64   `json:"balance"`
	BalanceFormatted string  `json:"balanceFormatted"`
	BalanceUSD       *string `json:"balanceUsd"`
}

type devicePrice struct {
	Price     string    `json:"price"`
	Formatted string    `json:"formatted"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// handleDeviceConfig handles GET /api/device/config, polled by paired
// devices. It returns the device, its owner's balance and the latest price.
func (s *Server) handleDeviceConfig(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("pairingCode"))
	if fields := missing("pairingCode", code); fields != nil {
		s.writeMissingFields(w, fields)
		return
	}
	if !utils.ValidatePairingCode(code) {
		s.writeError(w, http.StatusBadRequest, "Invalid pairing code")
		return
	}

	device, err := s.db.GetDeviceByPairingCode(r.Context(), code)
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Device not found")
		return
	}
	if err != nil {
		s.writeDBError(w, "get device", err)
		return
	}

	profile, err := s.db.GetProfile(r.Context(), device.UserID)
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		s.writeDBError(w, "get profile", err)
		return
	}

	if seen, err := s.db.TouchDevice(r.Context(), device.ID); err != nil {
		s.logger.Warn("failed to record device poll", zap.String("device_id", device.ID), zap.Error(err))
	} else {
		device.LastSeenAt = &seen
	}

	owner := deviceOwner{
		ID:               profile.ID,
		Username:         profile.Username,
		Balance:          profile.Balance,
		BalanceFormatted: utils.FormatSats(profile.Balance),
	}

	var price *devicePrice
	latest, err := s.db.GetLatestBitcoinPrice(r.Context())
	switch {
	case err == nil:
		price = &devicePrice{
			Price:     latest.Price.StringFixed(2),
			Formatted: utils.FormatUSD(latest.Price),
			Source:    latest.Source,
			UpdatedAt: latest.CreatedAt,
		}
		usd := utils.FormatUSD(utils.SatsToUSD(profile.Balance, latest.Price))
		owner.BalanceUSD = &usd
	case errors.Is(err, db.ErrNotFound):
	default:
		s.logger.Warn("latest bitcoin price unavailable", zap.Error(err))
	}

	s.writeJSON(w, map[string]interface{}{
		"success":      true,
		"device":       device,
		"user":         owner,
		"bitcoinPrice": price,
	})
}

type registerDeviceRequest struct {
	PairingCode string `json:"pairingCode"`
	PetName     string `json:"petName"`
	PetType     string `json:"petType"`
}

// handleRegisterDevice handles POST /api/device/register
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req registerDeviceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.PairingCode = strings.TrimSpace(req.PairingCode)
	if fields := missing("pairingCode", req.PairingCode, "petName", req.PetName); fields != nil {
		s.writeMissingFields(w, fields)
		return
	}
	if !utils.ValidatePairingCode(req.PairingCode) {
		s.writeError(w, http.StatusBadRequest, "Invalid pairing code")
		return
	}
	if req.PetType == "" {
		req.PetType = "cat"
	}

	device := &db.Device{
		UserID:      user.ID,
		PairingCode: req.PairingCode,
		PetName:     strings.TrimSpace(req.PetName),
		PetType:     req.PetType,
	}
	if err := s.db.RegisterDevice(r.Context(), device); err != nil {
		s.writeDBError(w, "register device", err)
		return
	}

	s.logger.Info("device paired", zap.String("device_id", device.ID), zap.String("user_id", user.ID))
	s.writeJSONStatus(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"device":  device,
	})
}

// handleDeleteDevice handles DELETE /api/device/{id}
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if err := s.db.DeleteDevice(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		s.writeDBError(w, "delete device", err)
		return
	}

	s.writeJSON(w, APIResponse{Success: true})
}
