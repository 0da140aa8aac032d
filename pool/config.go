// File: pool/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"errors"
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/momentics/hioload-mempool/api"
)

// ptrSize is the size of the free-list link stored in every free block.
const ptrSize = int(unsafe.Sizeof(unsafe.Pointer(nil)))

// validate is a singleton validator instance
var validate = validator.New()

// Config describes a raw pool. Heap and Report are code-only settings.
type Config struct {
	BlockSize    int        `yaml:"block_size" validate:"required,min=1"`
	ElementCount int        `yaml:"element_count" validate:"required,min=1"`
	Growth       GrowthMode `yaml:"growth"` // zero value is GrowFast
	Alignment    int        `yaml:"alignment" validate:"min=0"`
	OwnerTag     string     `yaml:"owner" validate:"max=256"`
	Checked      bool       `yaml:"checked"`

	Heap   api.Heap   `yaml:"-"`
	Report ReportFunc `yaml:"-"`
}

// DefaultConfig returns the settings used when a profile omits a field.
func DefaultConfig() Config {
	return Config{
		ElementCount: 64,
		Growth:       GrowFast,
	}
}

// Validate checks the configuration and returns an *api.Error with
// ErrCodeInvalidConfig describing the first problem found.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Alignment != 0 && bits.OnesCount(uint(c.Alignment)) != 1 {
		return configError("alignment must be zero or a power of two").
			WithContext("alignment", c.Alignment)
	}
	if !c.Growth.valid() {
		return configError("unknown growth mode").WithContext("growth", int(c.Growth))
	}
	if roundUp(c.BlockSize, c.Alignment) < ptrSize {
		return configError("block size cannot hold a free-list link").
			WithContext("block_size", c.BlockSize).
			WithContext("min", ptrSize)
	}
	return nil
}

// stride is the distance between consecutive blocks in a blob: the block
// size rounded to the requested alignment and to the link word's alignment.
func (c Config) stride() int {
	return roundUp(roundUp(c.BlockSize, c.Alignment), c.blockAlign())
}

// blockAlign is the alignment applied to every block; zero in the config
// means natural (pointer) alignment.
func (c Config) blockAlign() int {
	if c.Alignment > ptrSize {
		return c.Alignment
	}
	return ptrSize
}

func (c Config) withDefaults() Config {
	if c.OwnerTag == "" {
		c.OwnerTag = "mempool-" + uuid.NewString()
	}
	if c.Heap == nil {
		c.Heap = GoHeap{}
	}
	return c
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

func configError(msg string) *api.Error {
	return api.NewError(api.ErrCodeInvalidConfig, msg)
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return configError(fmt.Sprintf("%s: failed %s%s", fe.Field(), fe.Tag(), paramSuffix(fe.Param()))).
			WithContext("field", fe.Field()).
			WithContext("value", fe.Value())
	}
	return configError("validation failed").WithCause(err)
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
