package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/types"
)

func role(r *http.Request) (access.Role, error) {
	name := mux.Vars(r)["role"]
	ro, err := access.ParseRole(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", drip.ErrInvalidRole, name)
	}
	return ro, nil
}

func roleAndIdentity(r *http.Request) (access.Role, types.Identity, error) {
	ro, err := role(r)
	if err != nil {
		return 0, "", err
	}
	who, err := identity(r, "identity")
	if err != nil {
		return 0, "", err
	}
	return ro, who, nil
}

type holderResponse struct {
	Identity types.Identity `json:"identity"`
	Roles    []string       `json:"roles"`
}

func (s *Server) listRoleHolders(w http.ResponseWriter, r *http.Request) {
	ro, err := role(r)
	if err != nil {
		writeError(w, err)
		return
	}
	holders, err := s.engine.ListRoleHolders(r.Context(), ro)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]holderResponse, 0, len(holders))
	for _, h := range holders {
		out = append(out, holderResponse{Identity: h.Identity, Roles: h.Roles.Names()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) hasRole(w http.ResponseWriter, r *http.Request) {
	ro, who, err := roleAndIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ok, err := s.engine.HasRole(r.Context(), ro, who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_role": ok})
}

func (s *Server) identityRoles(w http.ResponseWriter, r *http.Request) {
	who, err := identity(r, "identity")
	if err != nil {
		writeError(w, err)
		return
	}
	var set access.RoleSet
	for _, ro := range access.AllRoles {
		ok, err := s.engine.HasRole(r.Context(), ro, who)
		if err != nil {
			writeError(w, err)
			return
		}
		if ok {
			set = set.With(ro)
		}
	}
	writeJSON(w, http.StatusOK, holderResponse{Identity: who, Roles: set.Names()})
}

func (s *Server) grantRole(w http.ResponseWriter, r *http.Request) {
	ro, who, err := roleAndIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.GrantRole(r.Context(), ro, who); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) revokeRole(w http.ResponseWriter, r *http.Request) {
	ro, who, err := roleAndIdentity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.RevokeRole(r.Context(), ro, who); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

type transferRequest struct {
	NewAdmin types.Identity `json:"new_admin"`
}

func (s *Server) initiateAdminTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.InitiateAdminTransfer(r.Context(), req.NewAdmin); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) cancelAdminTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CancelAdminTransfer(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) getAdminTransfer(w http.ResponseWriter, r *http.Request) {
	from, err := identity(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.engine.GetPendingAdminTransfer(r.Context(), from)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) acceptAdminTransfer(w http.ResponseWriter, r *http.Request) {
	from, err := identity(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.AcceptAdminTransfer(r.Context(), from); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

type contractResponse struct {
	Paused  bool   `json:"paused"`
	FeeRate uint64 `json:"fee_rate"`
}

func (s *Server) contractState(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contractResponse{Paused: st.Paused, FeeRate: st.FeeRate})
}

func (s *Server) pauseContract(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.PauseContract(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) unpauseContract(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.UnpauseContract(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

type feeRateRequest struct {
	FeeRate uint64 `json:"fee_rate"`
}

func (s *Server) setFeeRate(w http.ResponseWriter, r *http.Request) {
	var req feeRateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.SetFeeRate(r.Context(), req.FeeRate); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

// ──────────────────────────────────────────────────
// Treasury and emergency
// ──────────────────────────────────────────────────

type treasuryResponse struct {
	Account types.Identity `json:"account"`
	Balance types.Amount   `json:"balance"`
	Locked  bool           `json:"locked"`
}

func (s *Server) treasuryState(w http.ResponseWriter, r *http.Request) {
	bal, err := s.treasury.Balance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	locked, err := s.treasury.Locked(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasuryResponse{
		Account: s.treasury.Account(),
		Balance: bal,
		Locked:  locked,
	})
}

type withdrawRequest struct {
	Amount types.Amount   `json:"amount"`
	To     types.Identity `json:"to"`
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.treasury.Withdraw(r.Context(), req.Amount, req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) lockTreasury(w http.ResponseWriter, r *http.Request) {
	if err := s.treasury.Lock(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) unlockTreasury(w http.ResponseWriter, r *http.Request) {
	if err := s.treasury.Unlock(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) emergencyState(w http.ResponseWriter, r *http.Request) {
	state, err := s.emergency.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}

func (s *Server) emergencyPause(w http.ResponseWriter, r *http.Request) {
	if err := s.emergency.Pause(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) emergencyStop(w http.ResponseWriter, r *http.Request) {
	if err := s.emergency.EmergencyStop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) emergencyResume(w http.ResponseWriter, r *http.Request) {
	if err := s.emergency.Resume(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	noContent(w)
}
