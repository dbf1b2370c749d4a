package chain

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// errors
var (
	ErrNoSigners  = errors.New("no signers configured")
	ErrNoPassword = errors.New("keystore password is required")
)

// AccountsConfig -
type AccountsConfig struct {
	PrivateKeys []string        `yaml:"private_keys" validate:"omitempty,dive,omitempty,hexadecimal"`
	Keystore    *KeystoreConfig `yaml:"keystore" validate:"omitempty"`
}

// KeystoreConfig - go-ethereum keystore file or directory of files
type KeystoreConfig struct {
	Path     string `yaml:"path" validate:"required"`
	Password string `yaml:"password"`
}

// PasswordFunc - supplies the passphrase of a keystore file
type PasswordFunc func(path string) (string, error)

// Signer - account authorizing deployment transactions
type Signer struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// NewSigner -
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// SignerFromHex - private key in hex with or without 0x prefix
func SignerFromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return NewSigner(key), nil
}

// SignersFromKeystore - decrypts a keystore file or every file of a keystore directory
func SignersFromKeystore(cfg KeystoreConfig, password PasswordFunc) ([]*Signer, error) {
	files, err := keystoreFiles(cfg.Path)
	if err != nil {
		return nil, err
	}

	signers := make([]*Signer, 0, len(files))
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		pass := cfg.Password
		if pass == "" {
			if password == nil {
				return nil, errors.Wrap(ErrNoPassword, file)
			}
			if pass, err = password(file); err != nil {
				return nil, err
			}
		}

		key, err := keystore.DecryptKey(raw, pass)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt %s", file)
		}
		signers = append(signers, NewSigner(key.PrivateKey))
	}
	return signers, nil
}

func keystoreFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadSigners - ordered signers: private keys first, then keystore accounts. Duplicates are dropped.
// The first signer is the deployer.
func LoadSigners(cfg AccountsConfig, password PasswordFunc) ([]*Signer, error) {
	signers := make([]*Signer, 0, len(cfg.PrivateKeys))
	for i := range cfg.PrivateKeys {
		if cfg.PrivateKeys[i] == "" {
			continue
		}
		signer, err := SignerFromHex(cfg.PrivateKeys[i])
		if err != nil {
			return nil, errors.Wrapf(err, "private key #%d", i)
		}
		signers = append(signers, signer)
	}

	if cfg.Keystore != nil {
		fromKeystore, err := SignersFromKeystore(*cfg.Keystore, password)
		if err != nil {
			return nil, err
		}
		signers = append(signers, fromKeystore...)
	}

	seen := make(map[common.Address]struct{}, len(signers))
	result := signers[:0]
	for _, signer := range signers {
		if _, ok := seen[signer.Address]; ok {
			log.Warn().Stringer("address", signer.Address).Msg("duplicate signer is skipped")
			continue
		}
		seen[signer.Address] = struct{}{}
		result = append(result, signer)
	}

	if len(result) == 0 {
		return nil, ErrNoSigners
	}
	return result, nil
}

// TerminalPassword - asks for a keystore passphrase on the controlling terminal
func TerminalPassword(path string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.Wrap(ErrNoPassword, path)
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", filepath.Base(path))
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimSpace(string(password)), nil
}
