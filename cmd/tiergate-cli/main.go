package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"tiergate/crypto"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("TIERGATE_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		generateKey()
	case "init":
		if len(args) < 2 {
			fmt.Println("Usage: init <admin>")
			return
		}
		initialize(args[1])
	case "add":
		if len(args) < 4 {
			fmt.Println("Usage: add <caller> <address> <tier> [expiration] [permission ...]")
			return
		}
		addEntry("wl_addToWhitelist", args[1], args[2], args[3], args[4:])
	case "update":
		if len(args) < 4 {
			fmt.Println("Usage: update <caller> <address> <tier> [expiration] [permission ...]")
			return
		}
		addEntry("wl_updateWhitelistEntry", args[1], args[2], args[3], args[4:])
	case "remove":
		if len(args) < 3 {
			fmt.Println("Usage: remove <caller> <address>")
			return
		}
		removeEntry(args[1], args[2])
	case "entry":
		if len(args) < 2 {
			fmt.Println("Usage: entry <address>")
			return
		}
		getEntry(args[1])
	case "check":
		if len(args) < 2 {
			fmt.Println("Usage: check <address> [requiredTier]")
			return
		}
		tier := "0"
		if len(args) > 2 {
			tier = args[2]
		}
		checkWhitelisted(args[1], tier)
	case "has-permission":
		if len(args) < 3 {
			fmt.Println("Usage: has-permission <address> <permission>")
			return
		}
		checkPermission(args[1], args[2])
	case "admin":
		getAdmin()
	case "transfer-admin":
		if len(args) < 3 {
			fmt.Println("Usage: transfer-admin <caller> <newAdmin>")
			return
		}
		transferAdmin(args[1], args[2])
	case "merkle-root":
		if len(args) < 2 {
			fmt.Println("Usage: merkle-root <entries.json>")
			return
		}
		printMerkleRoot(args[1])
	case "merkle-proof":
		if len(args) < 3 {
			fmt.Println("Usage: merkle-proof <entries.json> <address>")
			return
		}
		printMerkleProof(args[1], args[2])
	case "set-root":
		if len(args) < 3 {
			fmt.Println("Usage: set-root <caller> <entries.json>")
			return
		}
		submitMerkleRoot(args[1], args[2])
	case "verify-proof":
		if len(args) < 3 {
			fmt.Println("Usage: verify-proof <entries.json> <address>")
			return
		}
		verifyProofRemote(args[1], args[2])
	case "snapshot":
		if len(args) < 3 {
			fmt.Println("Usage: snapshot <caller> <entries.json>")
			return
		}
		createSnapshot(args[1], args[2])
	case "get-snapshot":
		getSnapshot()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}

	fileName := "wallet.key"
	if err := os.WriteFile(fileName, key.Bytes(), 0600); err != nil {
		panic(fmt.Sprintf("Failed to save key to %s: %v", fileName, err))
	}

	fmt.Printf("Generated new key and saved to %s\n", fileName)
	fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
}

func initialize(admin string) {
	result, err := callRPC("wl_initialize", map[string]interface{}{"admin": admin}, true)
	if err != nil {
		fmt.Printf("Error initializing registry: %v\n", err)
		return
	}
	_ = result
	fmt.Printf("Registry initialized with admin %s\n", admin)
}

func addEntry(method, caller, address, tierStr string, rest []string) {
	tier, err := strconv.ParseUint(tierStr, 10, 32)
	if err != nil {
		fmt.Println("Error: Invalid tier.")
		return
	}
	params := map[string]interface{}{
		"caller":  caller,
		"address": address,
		"tier":    uint32(tier),
	}
	if len(rest) > 0 {
		expiration, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			fmt.Println("Error: Invalid expiration.")
			return
		}
		if expiration > 0 {
			params["expiration"] = expiration
		}
		if len(rest) > 1 {
			params["permissions"] = rest[1:]
		}
	}
	if _, err := callRPC(method, params, true); err != nil {
		fmt.Printf("Error writing entry: %v\n", err)
		return
	}
	fmt.Printf("Entry for %s stored at tier %d.\n", address, tier)
}

func removeEntry(caller, address string) {
	if _, err := callRPC("wl_removeFromWhitelist", map[string]interface{}{
		"caller":  caller,
		"address": address,
	}, true); err != nil {
		fmt.Printf("Error removing entry: %v\n", err)
		return
	}
	fmt.Printf("Entry for %s removed.\n", address)
}

func getEntry(address string) {
	result, err := callRPC("wl_getWhitelistEntry", map[string]interface{}{"address": address}, false)
	if err != nil {
		fmt.Printf("Error fetching entry: %v\n", err)
		return
	}
	if result == nil {
		fmt.Println("No stored entry for that address.")
		return
	}
	printJSON(result)
}

func checkWhitelisted(address, tierStr string) {
	tier, err := strconv.ParseUint(tierStr, 10, 32)
	if err != nil {
		fmt.Println("Error: Invalid tier.")
		return
	}
	result, err := callRPC("wl_isWhitelisted", map[string]interface{}{
		"address":      address,
		"requiredTier": uint32(tier),
	}, false)
	if err != nil {
		fmt.Printf("Error checking whitelist: %v\n", err)
		return
	}
	fmt.Printf("Whitelisted: %v\n", result)
}

func checkPermission(address, permission string) {
	result, err := callRPC("wl_hasPermission", map[string]interface{}{
		"address":    address,
		"permission": permission,
	}, false)
	if err != nil {
		fmt.Printf("Error checking permission: %v\n", err)
		return
	}
	fmt.Printf("Has permission %q: %v\n", permission, result)
}

func getAdmin() {
	result, err := callRPC("wl_getAdmin", map[string]interface{}{}, false)
	if err != nil {
		fmt.Printf("Error fetching admin: %v\n", err)
		return
	}
	if result == nil {
		fmt.Println("Registry is not initialized.")
		return
	}
	fmt.Printf("Admin: %v\n", result)
}

func transferAdmin(caller, newAdmin string) {
	if _, err := callRPC("wl_transferAdmin", map[string]interface{}{
		"caller":   caller,
		"newAdmin": newAdmin,
	}, true); err != nil {
		fmt.Printf("Error transferring admin: %v\n", err)
		return
	}
	fmt.Printf("Admin transferred to %s.\n", newAdmin)
}

func getSnapshot() {
	result, err := callRPC("wl_getSnapshot", map[string]interface{}{}, false)
	if err != nil {
		fmt.Printf("Error fetching snapshot: %v\n", err)
		return
	}
	if result == nil {
		fmt.Println("No snapshot recorded.")
		return
	}
	printJSON(result)
}

// --- RPC HELPER FUNCTIONS ---

func callRPC(method string, params interface{}, requireAuth bool) (interface{}, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": method, "params": []interface{}{params},
	})
	resp, err := doRPCRequest(payload, requireAuth)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result interface{} `json:"result"`
		Error  *struct {
			Code    int         `json:"code"`
			Message string      `json:"message"`
			Data    interface{} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node")
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Data != nil {
			return nil, fmt.Errorf("error from node: %s (%v)", rpcResp.Error.Message, rpcResp.Error.Data)
		}
		return nil, fmt.Errorf("error from node: %s", rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("privileged RPC call requires TIERGATE_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error rendering result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printUsage() {
	fmt.Println("Usage: tiergate-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Mutating commands require TIERGATE_RPC_TOKEN; the endpoint defaults to")
	fmt.Println("http://localhost:8545 and can be overridden via RPC_URL or --rpc.")
	fmt.Println("Commands:")
	fmt.Println("  generate-key                                  - Generates a new key and saves to wallet.key")
	fmt.Println("  init <admin>                                  - Initializes the registry with an admin address")
	fmt.Println("  add <caller> <address> <tier> [exp] [perm..]  - Adds a whitelist entry")
	fmt.Println("  update <caller> <address> <tier> [exp] [perm..] - Replaces an existing entry")
	fmt.Println("  remove <caller> <address>                     - Removes a whitelist entry")
	fmt.Println("  entry <address>                               - Prints the stored entry for an address")
	fmt.Println("  check <address> [requiredTier]                - Checks live whitelist membership")
	fmt.Println("  has-permission <address> <permission>         - Checks a permission token")
	fmt.Println("  admin                                         - Prints the current admin")
	fmt.Println("  transfer-admin <caller> <newAdmin>            - Hands admin authority to a new address")
	fmt.Println("  merkle-root <entries.json>                    - Computes the root of a membership file")
	fmt.Println("  merkle-proof <entries.json> <address>         - Builds a proof for one member")
	fmt.Println("  set-root <caller> <entries.json>              - Computes and commits a merkle root")
	fmt.Println("  verify-proof <entries.json> <address>         - Builds a proof locally and verifies it remotely")
	fmt.Println("  snapshot <caller> <entries.json>              - Records a snapshot of a membership file")
	fmt.Println("  get-snapshot                                  - Prints the recorded snapshot")
}
