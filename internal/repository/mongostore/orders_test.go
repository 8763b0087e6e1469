package mongostore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"eshop_back_end/internal/repository"
)

func TestAbortedDeleteIsNotPartial(t *testing.T) {
	inner := fmt.Errorf("%w: %v", repository.ErrPartialDelete, errors.New("write conflict"))

	err := abortedDelete(inner)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrPartialDelete)
	assert.Contains(t, err.Error(), "write conflict")

	assert.ErrorIs(t, abortedDelete(repository.ErrNotFound), repository.ErrNotFound)
}
