package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcClientError mirrors the gateway's {code, message} error shape so
// callers can render it the same way a local validation error is
// rendered.
type rpcClientError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *rpcClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// callGateway posts a conductor.* RPC call to a running conductor's
// gateway and decodes its result into v. Mirrors the request/response
// envelope the gateway package's rpc.go defines.
func callGateway(addr, method string, params any, v any) error {
	body, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		return fmt.Errorf("encode rpc request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post("http://"+addr+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("connect to conductor gateway at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var out struct {
		Result json.RawMessage  `json:"result"`
		Error  *rpcClientError  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if out.Error != nil {
		return out.Error
	}
	if v == nil || len(out.Result) == 0 {
		return nil
	}
	return json.Unmarshal(out.Result, v)
}
