package logindex

// IndexKey 是索引表在KV存储中占用的保留键。
// 日志的存储键格式是 "key#password"，必然包含'#'，因此永远不会与它冲突。
const IndexKey = "0Aindex"

// indexVersion 是索引表的schema版本号
const indexVersion = 1

// Entry 是索引表中的一条记录，对应一个仍然存活的日志条目
type Entry struct {
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
}

// Table 是整个部署唯一的索引表。
// 它整体存储在IndexKey下，每次更新都完整重写，不做局部修补。
type Table struct {
	Version     int     `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Logs        []Entry `json:"logs"`
}

// NewTable 创建一个空的索引表
func NewTable() *Table {
	return &Table{Version: indexVersion, Logs: []Entry{}}
}

// Contains 检查表中是否已有指定的键
func (t *Table) Contains(key string) bool {
	for _, e := range t.Logs {
		if e.Key == key {
			return true
		}
	}
	return false
}
