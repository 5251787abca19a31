// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// toServiceError turns any request or stream failure into the single
// [af.ServiceError] callers see. The original error stays reachable.
func toServiceError(err error) error {
	if err == nil {
		return nil
	}
	var svc *af.ServiceError
	if errors.As(err, &svc) {
		return svc
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return &af.ServiceError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Err:        category(apiErr.HTTPStatusCode, code),
			Cause:      err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &af.ServiceError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        category(reqErr.HTTPStatusCode, ""),
			Cause:      err,
		}
	}

	return &af.ServiceError{Message: err.Error(), Err: af.ErrService, Cause: err}
}

func category(status int, code string) error {
	switch {
	case code == "content_filter":
		return af.ErrContentFilter
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return af.ErrAuth
	case status == http.StatusBadRequest:
		return af.ErrInvalidRequest
	default:
		return af.ErrService
	}
}
