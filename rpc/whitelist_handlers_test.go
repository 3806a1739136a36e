package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tiergate/core/state"
	"tiergate/crypto"
	"tiergate/native/whitelist"
	"tiergate/storage"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	engine := whitelist.NewEngine(state.NewManager(storage.NewMemDB()))
	server := NewServer(engine, nil)
	server.authToken = testToken

	adminKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate admin key: %v", err)
	}
	return server, adminKey.PubKey().Address().String()
}

func testAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func call(t *testing.T, server *Server, authed bool, method string, params interface{}) RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body %q)", err, recorder.Body.String())
	}
	return resp
}

func mustSucceed(t *testing.T, server *Server, method string, params interface{}) RPCResponse {
	t.Helper()
	resp := call(t, server, true, method, params)
	if resp.Error != nil {
		t.Fatalf("%s failed: %+v", method, resp.Error)
	}
	return resp
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	server, admin := newTestServer(t)

	resp := call(t, server, false, "wl_initialize", map[string]string{"admin": admin})
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	server, _ := newTestServer(t)
	resp := call(t, server, true, "wl_noSuchThing", map[string]string{})
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp.Error)
	}
}

func TestWhitelistLifecycleOverRPC(t *testing.T) {
	server, admin := newTestServer(t)
	user := testAddress(t)

	mustSucceed(t, server, "wl_initialize", map[string]string{"admin": admin})

	adminResp := mustSucceed(t, server, "wl_getAdmin", map[string]string{})
	if adminResp.Result != admin {
		t.Fatalf("expected admin %q, got %v", admin, adminResp.Result)
	}

	mustSucceed(t, server, "wl_addToWhitelist", map[string]interface{}{
		"caller":      admin,
		"address":     user,
		"tier":        2,
		"permissions": []string{"puzzle"},
	})

	resp := mustSucceed(t, server, "wl_isWhitelisted", map[string]interface{}{
		"address":      user,
		"requiredTier": 1,
	})
	if resp.Result != true {
		t.Fatalf("expected tier-1 check to pass, got %v", resp.Result)
	}
	resp = mustSucceed(t, server, "wl_isWhitelisted", map[string]interface{}{
		"address":      user,
		"requiredTier": 3,
	})
	if resp.Result != false {
		t.Fatalf("expected tier-3 check to fail, got %v", resp.Result)
	}

	resp = mustSucceed(t, server, "wl_hasPermission", map[string]interface{}{
		"address":    user,
		"permission": "PUZZLE",
	})
	if resp.Result != true {
		t.Fatalf("expected permission check to pass, got %v", resp.Result)
	}

	entryResp := mustSucceed(t, server, "wl_getWhitelistEntry", map[string]string{"address": user})
	entryMap, ok := entryResp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected entry object, got %T", entryResp.Result)
	}
	if entryMap["tier"] != float64(2) || entryMap["live"] != true {
		t.Fatalf("unexpected entry payload: %v", entryMap)
	}

	mustSucceed(t, server, "wl_removeFromWhitelist", map[string]string{
		"caller":  admin,
		"address": user,
	})
	entryResp = mustSucceed(t, server, "wl_getWhitelistEntry", map[string]string{"address": user})
	if entryResp.Result != nil {
		t.Fatalf("expected nil entry after removal, got %v", entryResp.Result)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	server, admin := newTestServer(t)
	user := testAddress(t)

	mustSucceed(t, server, "wl_initialize", map[string]string{"admin": admin})

	// Second initialization conflicts.
	resp := call(t, server, true, "wl_initialize", map[string]string{"admin": admin})
	if resp.Error == nil || resp.Error.Message != "conflict" {
		t.Fatalf("expected conflict, got %+v", resp.Error)
	}

	// Tier 0 maps to invalid params.
	resp = call(t, server, true, "wl_addToWhitelist", map[string]interface{}{
		"caller":  admin,
		"address": user,
		"tier":    0,
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}

	// Non-admin callers are forbidden.
	resp = call(t, server, true, "wl_addToWhitelist", map[string]interface{}{
		"caller":  user,
		"address": user,
		"tier":    1,
	})
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected forbidden, got %+v", resp.Error)
	}

	// Removing an unknown address maps to not_found.
	resp = call(t, server, true, "wl_removeFromWhitelist", map[string]string{
		"caller":  admin,
		"address": user,
	})
	if resp.Error == nil || resp.Error.Message != "not_found" {
		t.Fatalf("expected not_found, got %+v", resp.Error)
	}

	// Proof verification without a committed root.
	resp = call(t, server, true, "wl_verifyMerkleProof", map[string]interface{}{
		"address": user,
		"tier":    1,
		"proof":   []string{},
	})
	if resp.Error == nil || resp.Error.Message != "invalid_merkle_proof" {
		t.Fatalf("expected invalid_merkle_proof, got %+v", resp.Error)
	}
}

func TestBatchAndMerkleOverRPC(t *testing.T) {
	server, admin := newTestServer(t)
	users := []string{testAddress(t), testAddress(t)}

	mustSucceed(t, server, "wl_initialize", map[string]string{"admin": admin})

	entries := make([]map[string]interface{}, 0, len(users))
	for i, user := range users {
		entries = append(entries, map[string]interface{}{
			"address": user,
			"tier":    i + 1,
		})
	}
	mustSucceed(t, server, "wl_batchAddToWhitelist", map[string]interface{}{
		"caller":  admin,
		"entries": entries,
	})

	// Build a tree over the same membership set and verify a proof through
	// the RPC surface.
	var userBytes [20]byte
	decoded, err := crypto.DecodeAddress(users[0])
	if err != nil {
		t.Fatalf("decode user: %v", err)
	}
	copy(userBytes[:], decoded.Bytes())
	var otherBytes [20]byte
	decoded, err = crypto.DecodeAddress(users[1])
	if err != nil {
		t.Fatalf("decode user: %v", err)
	}
	copy(otherBytes[:], decoded.Bytes())

	leaves := [][32]byte{
		whitelist.LeafHash(userBytes, 1),
		whitelist.LeafHash(otherBytes, 2),
	}
	root, err := whitelist.ComputeMerkleRoot(leaves)
	if err != nil {
		t.Fatalf("compute root: %v", err)
	}
	proof, err := whitelist.BuildMerkleProof(leaves, leaves[0])
	if err != nil {
		t.Fatalf("build proof: %v", err)
	}
	proofHex := make([]string, 0, len(proof))
	for _, element := range proof {
		proofHex = append(proofHex, formatHash32(element))
	}

	mustSucceed(t, server, "wl_setMerkleRoot", map[string]interface{}{
		"caller": admin,
		"root":   formatHash32(root),
	})

	resp := mustSucceed(t, server, "wl_verifyMerkleProof", map[string]interface{}{
		"address": users[0],
		"tier":    1,
		"proof":   proofHex,
	})
	if resp.Result != true {
		t.Fatalf("expected proof to verify, got %v", resp.Result)
	}

	// Malformed proof element lengths are rejected at the boundary.
	resp = call(t, server, true, "wl_verifyMerkleProof", map[string]interface{}{
		"address": users[0],
		"tier":    1,
		"proof":   []string{"0xdeadbeef"},
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for short element, got %+v", resp.Error)
	}

	snapshotResp := mustSucceed(t, server, "wl_createSnapshot", map[string]interface{}{
		"caller":       admin,
		"root":         formatHash32(root),
		"totalEntries": 2,
	})
	snapshotMap, ok := snapshotResp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected snapshot object, got %T", snapshotResp.Result)
	}
	if snapshotMap["merkleRoot"] != formatHash32(root) {
		t.Fatalf("unexpected snapshot root: %v", snapshotMap["merkleRoot"])
	}

	gotSnapshot := mustSucceed(t, server, "wl_getSnapshot", map[string]string{})
	if fmt.Sprintf("%v", gotSnapshot.Result.(map[string]interface{})["totalEntries"]) != "2" {
		t.Fatalf("unexpected snapshot payload: %v", gotSnapshot.Result)
	}
}

func TestBatchRejectionIsAtomicOverRPC(t *testing.T) {
	server, admin := newTestServer(t)
	users := []string{testAddress(t), testAddress(t)}

	mustSucceed(t, server, "wl_initialize", map[string]string{"admin": admin})

	resp := call(t, server, true, "wl_batchAddToWhitelist", map[string]interface{}{
		"caller": admin,
		"entries": []map[string]interface{}{
			{"address": users[0], "tier": 1},
			{"address": users[1], "tier": 0},
		},
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}

	check := mustSucceed(t, server, "wl_isWhitelisted", map[string]interface{}{"address": users[0]})
	if check.Result != false {
		t.Fatalf("first batch element must not be committed, got %v", check.Result)
	}
}
