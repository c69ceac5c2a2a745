package response

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Status bool      `json:"status"`
	Error  ErrorBody `json:"error"`
}

func Error(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Status: false,
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}
