package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	abciapp "pricefeed.mini/pfo/internal/abci"
	"pricefeed.mini/pfo/internal/oracle"
	"pricefeed.mini/pfo/internal/types"
)

// maxTxBytes bounds a submitted transaction body.
const maxTxBytes = 64 << 10

// statusFor maps a failed response code onto an HTTP status.
func statusFor(code uint32, codespace string) int {
	if codespace != oracle.Codespace {
		switch code {
		case abciapp.CodeTypeAuthError:
			return http.StatusUnauthorized
		default:
			return http.StatusBadRequest
		}
	}
	switch code {
	case oracle.ErrInvalidAuthority.Code:
		return http.StatusForbidden
	case oracle.ErrAlreadyInitialized.Code:
		return http.StatusConflict
	case oracle.ErrAccountNotInitialized.Code:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// query runs path against the backend and writes any failure. The returned
// value is nil when a response has already been written.
func (s *Service) query(w http.ResponseWriter, r *http.Request, path string, data []byte) []byte {
	resp, err := s.backend.Query(r.Context(), path, data)
	if err != nil {
		s.logger.Error("", fmt.Sprintf("API: query %s failed: %v", path, err))
		s.writeError(w, http.StatusBadGateway, "Query failed")
		return nil
	}
	if resp.Code != abciapp.CodeTypeOK {
		s.writeJSON(w, statusFor(resp.Code, resp.Codespace), map[string]interface{}{
			"error":     resp.Log,
			"code":      resp.Code,
			"codespace": resp.Codespace,
		})
		return nil
	}
	return resp.Value
}

// @Title: Get Price Account Address
// @Route: GET /api/address
// @Description: Returns the derived price account address, bump, program id and seed
// @Response: {"address": "...", "bump": 254, "program_id": "...", "seed": "price_feed_v1"}
func (s *Service) HandleAddress(w http.ResponseWriter, r *http.Request) {
	value := s.query(w, r, abciapp.QueryAddress, nil)
	if value == nil {
		return
	}
	var info types.AddressInfo
	if err := json.Unmarshal(value, &info); err != nil {
		s.writeError(w, http.StatusBadGateway, "Malformed query response")
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// @Title: Get Price
// @Route: GET /api/price?account=...
// @Description: Reads the price record without emitting a notification; account defaults to the derived address
// @Response: {"address": "...", "authority": "...", "price": 2197, "decimals": 2, "bump": 254, "value": "21.97"}
func (s *Service) HandlePrice(w http.ResponseWriter, r *http.Request) {
	value := s.query(w, r, abciapp.QueryPrice, []byte(r.URL.Query().Get("account")))
	if value == nil {
		return
	}
	var view types.PriceView
	if err := json.Unmarshal(value, &view); err != nil {
		s.writeError(w, http.StatusBadGateway, "Malformed query response")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// @Title: Get Account
// @Route: GET /api/account?address=...
// @Description: Returns the raw ledger account; address defaults to the derived price account
// @Response: {"address": "...", "owner": "...", "lamports": 1238880, "data": "base64"}
func (s *Service) HandleAccount(w http.ResponseWriter, r *http.Request) {
	value := s.query(w, r, abciapp.QueryAccount, []byte(r.URL.Query().Get("address")))
	if value == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Description: Submits an initialize, update_price or get_price transaction and waits for it to commit; get_price may be unsigned and each transaction body is accepted once
// @Response: Receipt object {"tx_id": "...", "hash": "...", "height": 3, "code": 0, "events": [...]}
func (s *Service) HandleSubmitTx(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxTxBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(raw) > maxTxBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "Transaction too large")
		return
	}

	var stx types.SignedTransaction
	if err := json.Unmarshal(raw, &stx); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid signed transaction")
		return
	}

	receipt, err := s.backend.Submit(r.Context(), raw)
	if err != nil {
		s.logger.Error("", fmt.Sprintf("API: submit failed: %v", err))
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("Submit failed: %v", err))
		return
	}

	if !receipt.OK() {
		s.logger.Warning(fmt.Sprintf("API: transaction %s rejected with code %d", receipt.TxID, receipt.Code))
		s.writeJSON(w, statusFor(receipt.Code, receipt.Codespace), receipt)
		return
	}

	s.logger.Info(fmt.Sprintf("API: transaction %s committed at height %d", receipt.TxID, receipt.Height))
	s.writeJSON(w, http.StatusOK, receipt)
}
