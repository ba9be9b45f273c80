package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/rs/zerolog"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeGeneratorConfig bounds the search for a free wallet code.
type CodeGeneratorConfig struct {
	Length       int
	MaxAttempts  int // per length
	WidenBy      int
	MaxWidenings int
}

// CodeGeneratorImpl implements ports.CodeGenerator.
type CodeGeneratorImpl struct {
	repo   ports.WalletRepository
	cfg    CodeGeneratorConfig
	random io.Reader
	log    zerolog.Logger
}

// NewCodeGenerator creates a generator backed by crypto/rand.
func NewCodeGenerator(repo ports.WalletRepository, cfg CodeGeneratorConfig, log zerolog.Logger) *CodeGeneratorImpl {
	if cfg.Length <= 0 {
		cfg.Length = 12
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &CodeGeneratorImpl{
		repo:   repo,
		cfg:    cfg,
		random: rand.Reader,
		log:    log,
	}
}

// Generate returns a code no wallet currently holds. After MaxAttempts
// collisions at one length the code grows by WidenBy characters.
func (g *CodeGeneratorImpl) Generate(ctx context.Context) (string, error) {
	length := g.cfg.Length
	for widening := 0; widening <= g.cfg.MaxWidenings; widening++ {
		for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
			code, err := randomCode(g.random, length)
			if err != nil {
				return "", apperror.InternalError(fmt.Errorf("generate code: %w", err))
			}
			exists, err := g.repo.CodeExists(ctx, code)
			if err != nil {
				return "", apperror.InternalError(fmt.Errorf("check code: %w", err))
			}
			if !exists {
				return code, nil
			}
		}
		g.log.Warn().Int("length", length).Msg("wallet code space congested, widening")
		length += g.cfg.WidenBy
	}
	return "", apperror.InternalError(fmt.Errorf("no free wallet code after %d widenings", g.cfg.MaxWidenings))
}

func randomCode(r io.Reader, length int) (string, error) {
	size := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(r, size)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
