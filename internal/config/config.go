package config

import (
	"flag"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AlipayCfg 支付宝当面付配置
// 构造期以值方式传给网关客户端与验签器，进程内没有可变的全局凭据
type AlipayCfg struct {
	AppID           string `mapstructure:"appId"`
	AppPrivateKey   string `mapstructure:"appPrivateKey"`
	AlipayPublicKey string `mapstructure:"alipayPublicKey"`
	SignType        string `mapstructure:"signType"` // RSA | RSA2
	Charset         string `mapstructure:"charset"`
	Format          string `mapstructure:"format"`
	IsSandbox       bool   `mapstructure:"isSandbox"`
	GatewayURL      string `mapstructure:"gatewayUrl"` // 留空按沙箱开关选择官方网关
	NotifyURL       string `mapstructure:"notifyUrl"`
	TimeoutSec      int    `mapstructure:"timeoutSec"`
	RetryTimes      int    `mapstructure:"retryTimes"`
	RetryIntervalMs int    `mapstructure:"retryIntervalMs"`
}

// Gateway 按沙箱开关返回网关地址，显式配置的地址优先
func (c AlipayCfg) Gateway() string {
	if c.GatewayURL != "" {
		return c.GatewayURL
	}
	if c.IsSandbox {
		return "https://openapi.alipaydev.com/gateway.do"
	}
	return "https://openapi.alipay.com/gateway.do"
}

type StoreCfg struct {
	Backend string `mapstructure:"backend"` // memory | redis | mysql
}

type MysqlCfg struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitCfg struct {
	URL string `mapstructure:"url"`
}

type Root struct {
	Server     ServerCfg `mapstructure:"server"`
	Alipay     AlipayCfg `mapstructure:"alipay"`
	Store      StoreCfg  `mapstructure:"store"`
	MysqlOrder MysqlCfg  `mapstructure:"mysql_order"`
	Redis      RedisCfg  `mapstructure:"redis"`
	RabbitMQ   RabbitCfg `mapstructure:"rabbitmq"`
}

var C Root

func Init() {
	env := flag.String("env", "dev", "config env: dev|prod")
	flag.Parse()

	v := viper.New()
	v.SetConfigFile("config/config." + *env + ".yaml")
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config file failed: %v", err)
	}
	if err := v.Unmarshal(&C); err != nil {
		log.Fatalf("unmarshal config failed: %v", err)
	}

	// sane defaults
	if strings.TrimSpace(C.Server.Port) == "" {
		C.Server.Port = "8080"
	}
	if C.Store.Backend == "" {
		C.Store.Backend = "memory"
	}
	if C.Alipay.SignType == "" {
		C.Alipay.SignType = "RSA2"
	}
	if C.Alipay.Charset == "" {
		C.Alipay.Charset = "utf-8"
	}
	if C.Alipay.Format == "" {
		C.Alipay.Format = "JSON"
	}
	if C.Alipay.TimeoutSec <= 0 {
		C.Alipay.TimeoutSec = 10
	}
	if C.Alipay.RetryTimes <= 0 {
		C.Alipay.RetryTimes = 2
	}
	if C.Alipay.RetryIntervalMs <= 0 {
		C.Alipay.RetryIntervalMs = 500
	}

	if C.Alipay.AppID == "" || C.Alipay.AppPrivateKey == "" || C.Alipay.AlipayPublicKey == "" {
		log.Fatalf("alipay config incomplete: appId/appPrivateKey/alipayPublicKey are required")
	}
}
