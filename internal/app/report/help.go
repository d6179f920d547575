package report

const helpHeader = `欢迎使用 NodeSeek 签到机器人！
------- 【菜 单】 --------
/start - 显示帮助
/check - 手动签到
/add   - 添加账号(请勿在群聊中使用)
/del   - 删除账号
/mode  - 签到模式（true=随机，默认固定false）
/list  - 账号列表
`

const adminHelp = helpHeader + `/hz    - 每日汇总
/log   - 签到记录(默认7天)
/stats - 签到统计(默认30天)
/settime - 自动签到时间（范围 0–10 点）
/txt  - 管理喊话
------- 【说 明】 --------
默认每天0 - 0时5分随机时间签到
check 格式(/check)所有账号
check 格式(/check TGID,账号)指定用户的账号
add 格式(/add 账号@密码)
del 格式(/del 账号)删除指定账号
del 格式(/del TGID)删除ID下所有账号
mode 格式(/mode true)
log 格式(/log 天数)所有账号的指定天数
log 格式(/log 天数 账号)指定账号的指定天数
stats 格式(/stats 天数)所有账号的指定天数
settime 格式(/settime 7:00)
txt 格式(/txt 内容)全体喊话
txt 格式(/txt TGID,内容)指定喊话
-------------------------`

const userHelp = helpHeader + `/log   - 签到记录(默认7天)
/stats - 签到统计(默认30天)
/settime - 自动签到时间（范围 0–10 点）
------- 【说 明】 --------
默认每天0 - 0时5分随机时间签到
check 格式(/check)所有账号
check 格式(/check 账号)指定账号
add 格式(/add 账号@密码)
del 格式(/del 账号)删除指定账号
del 格式(/del -all)删除所有账号
mode 格式(/mode true)
log 格式(/log 天数)所有账号的指定天数
log 格式(/log 天数 账号)指定账号的指定天数
stats 格式(/stats 天数)所有账号的指定天数
settime 格式(/settime 7:00)`

func HelpText(admin bool) string {
	if admin {
		return adminHelp
	}
	return userHelp
}
