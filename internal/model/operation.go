package model

import "strings"

// Operation 运营活动（二维码对应的打卡点），对打卡流程只读
type Operation struct {
	BaseModel
	Token                 string  `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"` // 二维码 URL 中的公开引用
	Name                  string  `gorm:"type:varchar(255);not null" json:"name"`
	UseClockInGeolocation bool    `gorm:"not null;default:false" json:"useClockInGeolocation"`
	Distance              float64 `gorm:"not null;default:0" json:"distance"` // 围栏半径，单位公里
	Street                string  `gorm:"type:varchar(255)" json:"street,omitempty"`
	Zip                   string  `gorm:"type:varchar(32)" json:"zip,omitempty"`
	City                  string  `gorm:"type:varchar(128)" json:"city,omitempty"`
	Country               string  `gorm:"type:varchar(64)" json:"country,omitempty"`
}

func (Operation) TableName() string {
	return "operations"
}

// GeofenceEnabled 开启定位且半径大于 0 时才做围栏校验
func (o *Operation) GeofenceEnabled() bool {
	return o != nil && o.UseClockInGeolocation && o.Distance > 0
}

func (o *Operation) RadiusMeters() float64 {
	return o.Distance * 1000
}

// Address 返回运营地址，未配置时返回 nil
func (o *Operation) Address() *Address {
	addr := &Address{Street: o.Street, Zip: o.Zip, City: o.City, Country: o.Country}
	if addr.IsEmpty() {
		return nil
	}
	return addr
}

type Address struct {
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

func (a *Address) IsEmpty() bool {
	return a == nil || strings.TrimSpace(a.Street+a.Zip+a.City) == ""
}

// Query 地理编码使用的自由文本查询："street zip city"
func (a *Address) Query() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.Zip, a.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
