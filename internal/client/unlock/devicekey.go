package unlock

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/filex"
)

const deviceKeyFile = "device.key"

// DeviceKey is a device-bound credential for terminals without a platform
// authenticator: a random secret in a 0600 file. The credential id is a
// digest of the secret, so the conf store never holds the secret itself.
type DeviceKey struct {
	dir string
}

func NewDeviceKey(dir string) *DeviceKey {
	return &DeviceKey{dir: dir}
}

func (k *DeviceKey) Available(context.Context) bool {
	return k.dir != ""
}

func (k *DeviceKey) Register(context.Context) ([]byte, error) {
	dir, err := filex.EnsureDir("", k.dir)
	if err != nil {
		return nil, err
	}
	secret := common.GenerateRandByteArray(32)
	defer common.WipeByteArray(secret)

	if err := os.WriteFile(filepath.Join(dir, deviceKeyFile), secret, 0o600); err != nil {
		return nil, fmt.Errorf("write device key: %w", err)
	}
	return credentialID(secret), nil
}

func (k *DeviceKey) Authenticate(_ context.Context, id []byte) error {
	secret, err := os.ReadFile(filepath.Join(k.dir, deviceKeyFile))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrPasskeyUnavailable
	}
	if err != nil {
		return fmt.Errorf("read device key: %w", err)
	}
	defer common.WipeByteArray(secret)

	if subtle.ConstantTimeCompare(credentialID(secret), id) != 1 {
		return fmt.Errorf("%w: credential mismatch", ErrPasskeyUnavailable)
	}
	return nil
}

func credentialID(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:16]
}
