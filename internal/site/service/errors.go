package service

import (
	"context"
	"errors"
	"fmt"

	"sitegen/internal/company/registry"
	dErrors "sitegen/pkg/domain-errors"
)

// translateResolveError maps resolution failures to domain errors. The
// original error stays in the chain, so errors.Is against the registry
// sentinels keeps working.
func translateResolveError(err error) error {
	var re *registry.RegistryError
	if errors.As(err, &re) {
		switch re.Category {
		case registry.ErrorNotFound:
			return dErrors.Wrap(err, dErrors.CodeNotFound, "company not found in registry")
		case registry.ErrorRemote:
			return dErrors.Wrap(err, dErrors.CodeBadGateway, "registry unavailable")
		case registry.ErrorUnexpectedStatus:
			return dErrors.Wrap(err, dErrors.CodeBadGateway, fmt.Sprintf("registry returned status %d", re.StatusCode))
		case registry.ErrorMalformedResponse:
			return dErrors.Wrap(err, dErrors.CodeBadGateway, "registry returned an invalid response")
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeBadGateway, "registry lookup aborted")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve company")
}

func outcomeFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadGateway:
		return "registry_error"
	default:
		return "error"
	}
}
