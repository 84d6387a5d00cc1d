package dto

type SubmitSecretRequest struct {
	Secret string `json:"secret"`
}

type SecretResponse struct {
	Secret string `json:"secret"`
}

type SecretListResponse struct {
	Secrets []string `json:"secrets"`
}
