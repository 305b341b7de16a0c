package items

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxImageBytes = 5 << 20

var allowedImageExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// saveImageUpload は multipart の "image" パートを uploads ディレクトリに
// 保存し、公開 URL パスを返す。パートが無ければ (nil, nil)。
// 衝突と推測を避けるため、保存名は拡張子を残してランダムにする。
func saveImageUpload(c *gin.Context, dir string) (*string, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrInvalid("invalid image upload")
	}
	if file.Size > maxImageBytes {
		return nil, ErrInvalid("image exceeds 5MB limit")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExt[ext] {
		return nil, ErrInvalid("image must be png, jpg, jpeg, gif or webp")
	}

	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		return nil, ErrInternal("failed to store image")
	}
	url := "/uploads/" + name
	return &url, nil
}
