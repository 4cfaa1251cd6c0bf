package core

func init() {
	Register(ProcedureInfo{
		Key:             ProcedureLayout,
		Label:           "Layout join",
		Description:     "Join a line layout export with the style list on LINELAYOUT",
		Inputs:          []string{InputLayout, InputStyleList},
		DefaultFileName: "Layout_week18_22.csv",
	})
	Register(ProcedureInfo{
		Key:             ProcedureRawData,
		Label:           "Raw data model",
		Description:     "Rank operators by adjusted efficiency and average the top rows per group",
		Inputs:          []string{InputRawData, InputStyleList},
		DefaultFileName: "RAWDATA_MODEL_ALL1.csv",
	})
}
