package handler

import "chronostamp/internal/collection/models"

type ClaimRequest struct {
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

type CollectionResponse struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Owner         string `json:"owner"`
	TrustedSigner string `json:"trusted_signer"`
	BaseTokenURI  string `json:"base_token_uri"`
	TotalSupply   uint64 `json:"total_supply"`
}

func toCollectionResponse(c *models.Collection) CollectionResponse {
	return CollectionResponse{
		Address:       c.Address.Hex(),
		Name:          c.Name,
		Symbol:        c.Symbol,
		Owner:         c.Owner().Hex(),
		TrustedSigner: c.TrustedSigner.Hex(),
		BaseTokenURI:  c.BaseURI,
		TotalSupply:   c.TotalSupply(),
	}
}

type TokenResponse struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
	Owner      string `json:"owner"`
	TokenURI   string `json:"token_uri"`
}

type BalanceResponse struct {
	Holder  string `json:"holder"`
	Balance uint64 `json:"balance"`
}

type NonceResponse struct {
	Nonce string `json:"nonce"`
	Used  bool   `json:"used"`
}

type ClaimResponse struct {
	Collection string `json:"collection"`
	Claimant   string `json:"claimant"`
	TokenID    uint64 `json:"token_id"`
	TokenURI   string `json:"token_uri"`
	Nonce      string `json:"nonce"`
}

type OwnershipResponse struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}
