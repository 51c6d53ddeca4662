package dicelog

import (
	"encoding/base64"
	"time"
)

// ClientName 是生产方应用的固定标识
const ClientName = "SealDice"

// isoLayout 与历史部署的ISO-8601时间戳格式保持一致（毫秒精度，UTC）
const isoLayout = "2006-01-02T15:04:05.000Z"

// StorageData 是每条日志在KV存储中的完整JSON结构。
// 条目创建后不可变，直到被保留清理删除；created_at只在创建时写入一次。
type StorageData struct {
	Client    string `json:"client"`
	CreatedAt string `json:"created_at"`
	Data      string `json:"data"`
	Name      string `json:"name"`
	Note      string `json:"note"`
	UpdatedAt string `json:"updated_at"`
}

// NewStorageData 用上传的文件内容构造一条新日志。
// 文件内容以base64编码存储，note保留字段恒为空。
func NewStorageData(fileData []byte, name string) StorageData {
	now := time.Now().UTC().Format(isoLayout)
	return StorageData{
		Client:    ClientName,
		CreatedAt: now,
		Data:      base64.StdEncoding.EncodeToString(fileData),
		Name:      name,
		Note:      "",
		UpdatedAt: now,
	}
}
