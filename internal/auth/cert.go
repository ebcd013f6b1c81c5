package auth

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"software.sslmate.com/src/go-pkcs12"
)

// NewCertificateSource builds a TokenSource backed by a client certificate
// from a PKCS#12 (PFX) file. Token caching is handled by azidentity itself,
// so this path does not go through TokenCache.
func NewCertificateSource(tenantID, clientID, pfxPath, pfxPass string, logger *slog.Logger) (TokenSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("authentication method: PFX certificate file", "path", pfxPath)
	pfxData, err := os.ReadFile(pfxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PFX file: %w", err)
	}
	logger.Debug("PFX file read successfully", "bytes", len(pfxData))

	cred, err := createCertCredential(tenantID, clientID, pfxData, pfxPass)
	if err != nil {
		return nil, err
	}
	return &credentialSource{cred: cred}, nil
}

func createCertCredential(tenantID, clientID string, pfxData []byte, password string) (*azidentity.ClientCertificateCredential, error) {
	// go-pkcs12 supports SHA-256 and other modern PFX algorithms;
	// DecodeChain returns the private key and the full certificate chain
	key, cert, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PFX: %w", err)
	}

	privKey, ok := key.(crypto.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("decoded key is not a valid crypto.PrivateKey")
	}

	// azidentity expects the leaf certificate first
	certs := []*x509.Certificate{cert}
	if len(caCerts) > 0 {
		certs = append(certs, caCerts...)
	}

	opts := &azidentity.ClientCertificateCredentialOptions{
		SendCertificateChain: true,
	}

	return azidentity.NewClientCertificateCredential(tenantID, clientID, certs, privKey, opts)
}

// credentialSource adapts an azcore.TokenCredential to the TokenSource
// interface used everywhere else.
type credentialSource struct {
	cred azcore.TokenCredential
}

func (s *credentialSource) Token(ctx context.Context) (string, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{GraphScope},
	})
	if err != nil {
		return "", fmt.Errorf("certificate token acquisition failed: %w", err)
	}
	return tok.Token, nil
}
