package handler

type CreateBadgeRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	BaseURI       string `json:"base_uri"`
	TrustedSigner string `json:"trusted_signer"`
}

type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

type RegistryResponse struct {
	Address     string `json:"address"`
	Owner       string `json:"owner"`
	TotalBadges uint64 `json:"total_badges"`
}

type PageResponse struct {
	Offset      uint64   `json:"offset"`
	Limit       uint64   `json:"limit"`
	Total       uint64   `json:"total"`
	Collections []string `json:"collections"`
}

type CreateBadgeResponse struct {
	Collection string `json:"collection"`
}

type OwnershipResponse struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}
