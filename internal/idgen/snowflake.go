package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// 命名节点注册表，默认节点 "default" 供订单号生成使用
var nodeMap sync.Map // map[string]*snowflake.Node

// InitNode 注册一个命名 Snowflake 节点，重复注册覆盖旧节点
func InitNode(name string, nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("init snowflake node %q failed: %w", name, err)
	}
	nodeMap.Store(name, n)
	return nil
}

// NewFrom 用指定节点生成 ID，节点未注册属于启动序错误，直接 panic
func NewFrom(name string) uint64 {
	val, ok := nodeMap.Load(name)
	if !ok {
		panic(fmt.Sprintf("snowflake node not initialized: %s", name))
	}
	return uint64(val.(*snowflake.Node).Generate().Int64())
}

// New 用默认节点生成订单号
func New() uint64 {
	return NewFrom("default")
}

// CheckSystemClock 时钟回拨守护
// snowflake 依赖单调递增的毫秒时间戳，回拨会产生重复订单号，
// 检测到回拨时宁可退出进程也不发重号
func CheckSystemClock() {
	last := time.Now().UnixMilli()
	ticker := time.NewTicker(time.Second)
	for now := range ticker.C {
		current := now.UnixMilli()
		if current < last {
			log.Fatalf("[IDGen] system clock moved backward: last=%d now=%d", last, current)
		}
		last = current
	}
}
