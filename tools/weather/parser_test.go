package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		text     string
		wantCity string
		wantDays int
	}{
		{"北京今天天气怎么样", "北京", 1},
		{"查询上海明天的天气", "上海", 2},
		{"深圳后天会下雨吗", "深圳", 3},
		{"广州未来3天天气", "广州", 3},
		{"杭州未来2天天气", "杭州", 2},
		{"成都未来一周天气", "成都", 3},
		{"what's the weather in Beijing", "Beijing", 1},
		{"weather for Shanghai tomorrow", "Shanghai", 2},
		{"今天天气怎么样", "", 1},
	}
	for _, tt := range tests {
		city, days := ParseQuery(tt.text)
		assert.Equal(t, tt.wantCity, city, "city for %q", tt.text)
		assert.Equal(t, tt.wantDays, days, "days for %q", tt.text)
	}
}

func TestTransliterateCity(t *testing.T) {
	assert.Equal(t, "Beijing", TransliterateCity("北京"))
	assert.Equal(t, "Shanghai", TransliterateCity("上海市"))
	assert.Equal(t, "London", TransliterateCity("London"))
}
