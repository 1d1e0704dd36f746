package models

import (
	"errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	ollama "github.com/ollama/ollama/api"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
)

// StatusCode extracts the HTTP status carried by a provider SDK error.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var oaAPI *openai.APIError
	if errors.As(err, &oaAPI) && oaAPI.HTTPStatusCode > 0 {
		return oaAPI.HTTPStatusCode, true
	}
	var oaReq *openai.RequestError
	if errors.As(err, &oaReq) && oaReq.HTTPStatusCode > 0 {
		return oaReq.HTTPStatusCode, true
	}
	var anth *anthropic.Error
	if errors.As(err, &anth) && anth.StatusCode > 0 {
		return anth.StatusCode, true
	}
	var gapi *googleapi.Error
	if errors.As(err, &gapi) && gapi.Code > 0 {
		return gapi.Code, true
	}
	var ol ollama.StatusError
	if errors.As(err, &ol) && ol.StatusCode > 0 {
		return ol.StatusCode, true
	}
	var olAuth ollama.AuthorizationError
	if errors.As(err, &olAuth) && olAuth.StatusCode > 0 {
		return olAuth.StatusCode, true
	}
	return 0, false
}
