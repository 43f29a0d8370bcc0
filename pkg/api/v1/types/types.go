package types

type SinkType string

var SinkTypeMQTT = SinkType("mqtt")
var SinkTypeEmbedded = SinkType("embedded")
var SinkTypeDummy = SinkType("dummy")
