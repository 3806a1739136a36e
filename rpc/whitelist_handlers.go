package rpc

import (
	"errors"
	"net/http"

	"tiergate/native/whitelist"
)

type addressParam struct {
	Address string `json:"address"`
}

type callerAddressParam struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type entryParams struct {
	Caller      string   `json:"caller"`
	Address     string   `json:"address"`
	Tier        uint32   `json:"tier"`
	Expiration  uint64   `json:"expiration,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type entryJSON struct {
	Address     string   `json:"address"`
	Tier        uint32   `json:"tier"`
	Expiration  *uint64  `json:"expiration,omitempty"`
	Permissions []string `json:"permissions"`
	Live        bool     `json:"live"`
}

func formatEntryJSON(entry *whitelist.WhitelistEntry, live bool) entryJSON {
	out := entryJSON{
		Permissions: []string{},
		Live:        live,
	}
	if entry == nil {
		return out
	}
	out.Address = formatAddress(entry.Address)
	out.Tier = entry.Tier
	if entry.Expiration > 0 {
		expiration := entry.Expiration
		out.Expiration = &expiration
	}
	if len(entry.Permissions) > 0 {
		out.Permissions = entry.Permissions
	}
	return out
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Admin string `json:"admin"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	admin, err := parseBech32Address(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Initialize(admin); err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	s.logger.Info("registry initialized", "admin", params.Admin)
	writeResult(w, req.ID, true)
}

func (s *Server) handleAddToWhitelist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.mutateEntry(w, req, "add", s.engine.AddToWhitelist)
}

func (s *Server) handleUpdateWhitelistEntry(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.mutateEntry(w, req, "update", s.engine.UpdateWhitelistEntry)
}

func (s *Server) mutateEntry(w http.ResponseWriter, req *RPCRequest, op string, apply func([20]byte, *whitelist.WhitelistEntry) error) {
	var params entryParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	address, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	entry := &whitelist.WhitelistEntry{
		Address:     address,
		Tier:        params.Tier,
		Expiration:  params.Expiration,
		Permissions: params.Permissions,
	}
	if err := apply(caller, entry); err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	s.metrics.EntryMutated(op)
	s.refreshEntryGauge()
	writeResult(w, req.ID, true)
}

func (s *Server) handleRemoveFromWhitelist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params callerAddressParam
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	address, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.RemoveFromWhitelist(caller, address); err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	s.metrics.EntryMutated("remove")
	s.refreshEntryGauge()
	writeResult(w, req.ID, true)
}

func (s *Server) handleBatchAddToWhitelist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller  string `json:"caller"`
		Entries []struct {
			Address     string   `json:"address"`
			Tier        uint32   `json:"tier"`
			Expiration  uint64   `json:"expiration,omitempty"`
			Permissions []string `json:"permissions,omitempty"`
		} `json:"entries"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	entries := make([]*whitelist.WhitelistEntry, 0, len(params.Entries))
	for _, item := range params.Entries {
		address, err := parseBech32Address(item.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		entries = append(entries, &whitelist.WhitelistEntry{
			Address:     address,
			Tier:        item.Tier,
			Expiration:  item.Expiration,
			Permissions: item.Permissions,
		})
	}
	if err := s.engine.BatchAddToWhitelist(caller, entries); err != nil {
		s.metrics.BatchRejected("add")
		writeWhitelistError(w, req.ID, err)
		return
	}
	for range entries {
		s.metrics.EntryMutated("add")
	}
	s.refreshEntryGauge()
	writeResult(w, req.ID, true)
}

func (s *Server) handleBatchRemoveFromWhitelist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller    string   `json:"caller"`
		Addresses []string `json:"addresses"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addresses := make([][20]byte, 0, len(params.Addresses))
	for _, raw := range params.Addresses {
		address, err := parseBech32Address(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		addresses = append(addresses, address)
	}
	if err := s.engine.BatchRemoveFromWhitelist(caller, addresses); err != nil {
		s.metrics.BatchRejected("remove")
		writeWhitelistError(w, req.ID, err)
		return
	}
	for range addresses {
		s.metrics.EntryMutated("remove")
	}
	s.refreshEntryGauge()
	writeResult(w, req.ID, true)
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Address      string   `json:"address"`
		RequiredTier uint32   `json:"requiredTier,omitempty"`
		Proof        []string `json:"proof,omitempty"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	address, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var ok bool
	if len(params.Proof) > 0 {
		proof, err := parseProof(params.Proof)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		ok, err = s.engine.IsWhitelistedWithProof(address, params.RequiredTier, proof)
		if err != nil {
			writeWhitelistError(w, req.ID, err)
			return
		}
	} else {
		ok, err = s.engine.IsWhitelisted(address, params.RequiredTier)
		if err != nil {
			writeWhitelistError(w, req.ID, err)
			return
		}
	}
	writeResult(w, req.ID, ok)
}

func (s *Server) handleHasPermission(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Address    string `json:"address"`
		Permission string `json:"permission"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	address, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	ok, err := s.engine.HasPermission(address, params.Permission)
	if err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ok)
}

func (s *Server) handleGetWhitelistEntry(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParam
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	address, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	entry, exists, live, err := s.engine.GetStoredEntry(address)
	if err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	if !exists {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, formatEntryJSON(entry, live))
}

func (s *Server) handleSetTierPermissions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller      string   `json:"caller"`
		Tier        uint32   `json:"tier"`
		Permissions []string `json:"permissions"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetTierPermissions(caller, params.Tier, params.Permissions); err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetTierPermissions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Tier uint32 `json:"tier"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	perms, err := s.engine.GetTierPermissions(params.Tier)
	if err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, perms)
}

func (s *Server) handleSetMerkleRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller string `json:"caller"`
		Root   string `json:"root"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	root, err := parseHash32(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.SetMerkleRoot(caller, root); err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	s.logger.Info("merkle root updated", "root", formatHash32(root))
	writeResult(w, req.ID, true)
}

func (s *Server) handleVerifyMerkleProof(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Address string   `json:"address"`
		Tier    uint32   `json:"tier"`
		Proof   []string `json:"proof"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	address, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	ok, err := s.engine.VerifyMerkleProof(address, params.Tier, proof)
	if err != nil {
		s.metrics.ProofVerified("error")
		writeWhitelistError(w, req.ID, err)
		return
	}
	if ok {
		s.metrics.ProofVerified("valid")
	} else {
		s.metrics.ProofVerified("invalid")
	}
	writeResult(w, req.ID, ok)
}

type snapshotJSON struct {
	BlockNumber  uint64 `json:"blockNumber"`
	MerkleRoot   string `json:"merkleRoot"`
	TotalEntries uint64 `json:"totalEntries"`
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller       string `json:"caller"`
		Root         string `json:"root"`
		TotalEntries uint64 `json:"totalEntries"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	root, err := parseHash32(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	snapshot, err := s.engine.CreateSnapshot(caller, root, params.TotalEntries)
	if err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	s.metrics.SetSnapshotHeight(snapshot.BlockNumber)
	writeResult(w, req.ID, snapshotJSON{
		BlockNumber:  snapshot.BlockNumber,
		MerkleRoot:   formatHash32(snapshot.MerkleRoot),
		TotalEntries: snapshot.TotalEntries,
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	snapshot, ok, err := s.engine.GetSnapshot()
	if err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, snapshotJSON{
		BlockNumber:  snapshot.BlockNumber,
		MerkleRoot:   formatHash32(snapshot.MerkleRoot),
		TotalEntries: snapshot.TotalEntries,
	})
}

func (s *Server) handleTransferAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		NewAdmin string `json:"newAdmin"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	newAdmin, err := parseBech32Address(params.NewAdmin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.TransferAdmin(caller, newAdmin); err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	s.logger.Info("admin transferred", "newAdmin", params.NewAdmin)
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	admin, ok, err := s.engine.GetAdmin()
	if err != nil {
		writeWhitelistError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, formatAddress(admin))
}

func (s *Server) refreshEntryGauge() {
	if count, err := s.engine.EntryCount(); err == nil {
		s.metrics.SetStoredEntries(count)
	}
}

func writeWhitelistError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeServerError
	message := "internal_error"
	switch {
	case errors.Is(err, whitelist.ErrNotAuthorized), errors.Is(err, whitelist.ErrAdminNotFound):
		status = http.StatusForbidden
		code = codeUnauthorized
		message = "forbidden"
	case errors.Is(err, whitelist.ErrInvalidTier), errors.Is(err, whitelist.ErrInvalidPermission):
		status = http.StatusBadRequest
		code = codeInvalidParams
		message = "invalid_params"
	case errors.Is(err, whitelist.ErrEntryAlreadyExists),
		errors.Is(err, whitelist.ErrAlreadyInitialized),
		errors.Is(err, whitelist.ErrSnapshotMismatch):
		status = http.StatusConflict
		code = codeInvalidRequest
		message = "conflict"
	case errors.Is(err, whitelist.ErrAddressNotWhitelisted), errors.Is(err, whitelist.ErrExpiredEntry):
		status = http.StatusNotFound
		code = codeInvalidRequest
		message = "not_found"
	case errors.Is(err, whitelist.ErrInvalidMerkleProof):
		status = http.StatusBadRequest
		code = codeInvalidParams
		message = "invalid_merkle_proof"
	}
	writeError(w, status, id, code, message, err.Error())
}
